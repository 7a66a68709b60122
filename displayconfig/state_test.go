// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"errors"
	"testing"

	"github.com/linuxdeepin/go-lib/gettext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxdeepin/displayconfig-daemon/outputs"
)

func checkSnapshotInvariants(t *testing.T, snap *Snapshot) {
	used := make(map[string]bool)
	primaries := 0
	for _, lm := range snap.LogicalMonitors {
		for _, mm := range lm.Monitors {
			require.NotNil(t, snap.Monitor(mm.Connector), mm.Connector)
			assert.False(t, used[mm.Connector], "%s used twice", mm.Connector)
			used[mm.Connector] = true
		}
		if lm.Primary {
			primaries++
		}
	}
	if len(snap.LogicalMonitors) > 0 {
		assert.Equal(t, 1, primaries)
	}
}

func TestRefreshInvariants(t *testing.T) {
	for _, topology := range []outputs.Topology{
		nil,
		{edpOutput()},
		{disabled(edpOutput())},
		{edpOutput(), hdmiOutput()},
		{disabled(edpOutput()), hdmiOutput()},
		// duplicate connector
		{edpOutput(), edpOutput()},
		// enabled without a mode
		{func() outputs.Output { o := edpOutput(); o.CurrentMode = nil; return o }()},
	} {
		snap := NewState().Refresh(topology)
		checkSnapshotInvariants(t, snap)
	}
}

func TestRefreshAsymmetry(t *testing.T) {
	state := NewState()
	snap := state.Refresh(outputs.Topology{disabled(edpOutput()), hdmiOutput()})

	require.Len(t, snap.Monitors, 2)
	require.Len(t, snap.LogicalMonitors, 1)
	assert.Equal(t, "HDMI-1", snap.LogicalMonitors[0].Monitors[0].Connector)
	assert.True(t, snap.LogicalMonitors[0].Primary)

	edp := snap.Monitor("eDP-1")
	require.NotNil(t, edp)
	assert.True(t, edp.Builtin)
	assert.True(t, edp.Connected)
	assert.False(t, snap.Monitor("HDMI-1").Builtin)
	lm, modeID := snap.LogicalMonitorOf("eDP-1")
	assert.Nil(t, lm)
	assert.Empty(t, modeID)
}

func TestRefreshModes(t *testing.T) {
	snap := NewState().Refresh(outputs.Topology{hdmiOutput()})
	monitor := snap.Monitor("HDMI-1")
	require.Len(t, monitor.Modes, 2)
	mode := monitor.Mode(hdmiModeID)
	require.NotNil(t, mode)
	assert.True(t, mode.Preferred)
	assert.Equal(t, int32(60000), mode.RefreshRate)
	assert.Equal(t, 60.0, mode.RefreshHz())
	assert.Contains(t, mode.SupportedScales, 2.0)
	assert.Contains(t, mode.SupportedScales, 1.0)
	assert.Nil(t, monitor.Mode("640x480@60.000"))
}

func TestSerialStrictlyIncreasing(t *testing.T) {
	state := NewState()
	topology := outputs.Topology{edpOutput()}
	var last uint32
	for i := 0; i < 5; i++ {
		snap := state.Refresh(topology)
		assert.Greater(t, snap.Serial, last)
		last = snap.Serial
	}

	candidate, err := state.Propose(last, []LogicalMonitorConfig{{
		Scale: 1, Monitors: []MonitorConfig{{Connector: "eDP-1", ModeID: edpModeID}},
	}})
	require.NoError(t, err)
	require.NoError(t, state.Commit(candidate))
	assert.Greater(t, state.Current().Serial, last)
	last = state.Current().Serial

	assert.Greater(t, state.Refresh(topology).Serial, last)
}

func TestProposeStale(t *testing.T) {
	state := NewState()
	_, err := state.Propose(0, nil)
	assert.Equal(t, errNoSnapshot, err)

	state.Refresh(outputs.Topology{edpOutput()})
	held := state.Refresh(outputs.Topology{edpOutput()})
	before := *held

	_, err = state.Propose(held.Serial-1, nil)
	var staleErr *StaleSerialError
	require.True(t, errors.As(err, &staleErr))
	assert.Equal(t, held.Serial, staleErr.Current)
	assert.Same(t, held, state.Current())
	assert.Equal(t, before, *state.Current())
}

func TestProposeInvalid(t *testing.T) {
	state := NewState()
	held := state.Refresh(outputs.Topology{edpOutput(), hdmiOutput()})
	edp := MonitorConfig{Connector: "eDP-1", ModeID: edpModeID}
	hdmi := MonitorConfig{Connector: "HDMI-1", ModeID: hdmiModeID}

	for name, configs := range map[string][]LogicalMonitorConfig{
		"unknown connector": {{Scale: 1, Monitors: []MonitorConfig{{Connector: "DP-3", ModeID: edpModeID}}}},
		"used twice": {
			{Scale: 1, Monitors: []MonitorConfig{edp}},
			{X: 1920, Scale: 1, Monitors: []MonitorConfig{edp}},
		},
		"mirroring":       {{Scale: 1, Monitors: []MonitorConfig{edp, hdmi}}},
		"no monitors":     {{Scale: 1}},
		"foreign mode":    {{Scale: 1, Monitors: []MonitorConfig{{Connector: "eDP-1", ModeID: hdmiModeID}}}},
		"zero scale":      {{Scale: 0, Monitors: []MonitorConfig{edp}}},
		"negative scale":  {{Scale: -1, Monitors: []MonitorConfig{edp}}},
		"odd scale":       {{Scale: 1.5, Monitors: []MonitorConfig{edp}}},
		"bad transform":   {{Scale: 1, Transform: 8, Monitors: []MonitorConfig{edp}}},
		"two primaries": {
			{Scale: 1, Primary: true, Monitors: []MonitorConfig{edp}},
			{X: 1920, Scale: 2, Primary: true, Monitors: []MonitorConfig{hdmi}},
		},
	} {
		_, err := state.Propose(held.Serial, configs)
		var invalidErr *InvalidAssignmentError
		assert.True(t, errors.As(err, &invalidErr), name)
		assert.Same(t, held, state.Current(), name)
	}
}

func TestProposeCandidate(t *testing.T) {
	state := NewState()
	held := state.Refresh(outputs.Topology{edpOutput(), hdmiOutput()})

	// request order differs from monitor order
	candidate, err := state.Propose(held.Serial, []LogicalMonitorConfig{
		{X: 1920, Scale: 2, Primary: true, Monitors: []MonitorConfig{{Connector: "HDMI-1", ModeID: hdmiModeID}}},
		{Scale: 1, Transform: Transform90, Monitors: []MonitorConfig{{Connector: "eDP-1", ModeID: edpModeID}}},
	})
	require.NoError(t, err)
	assert.Same(t, held, state.Current())
	assert.Equal(t, held.Serial+1, candidate.Serial)
	require.Len(t, candidate.LogicalMonitors, 2)
	assert.Equal(t, "eDP-1", candidate.LogicalMonitors[0].Monitors[0].Connector)
	assert.Equal(t, Transform90, candidate.LogicalMonitors[0].Transform)
	assert.False(t, candidate.LogicalMonitors[0].Primary)
	assert.True(t, candidate.LogicalMonitors[1].Primary)
	checkSnapshotInvariants(t, candidate)

	// no primary requested
	candidate, err = state.Propose(held.Serial, []LogicalMonitorConfig{
		{X: 1920, Scale: 1, Monitors: []MonitorConfig{{Connector: "HDMI-1", ModeID: hdmiModeID}}},
		{Scale: 1, Monitors: []MonitorConfig{{Connector: "eDP-1", ModeID: edpModeID}}},
	})
	require.NoError(t, err)
	lm, _ := candidate.LogicalMonitorOf("eDP-1")
	assert.True(t, lm.Primary)
}

func TestProposeKeepsCurrentScale(t *testing.T) {
	edp := edpOutput()
	edp.Scale = 1.5
	state := NewState()
	held := state.Refresh(outputs.Topology{edp})

	_, err := state.Propose(held.Serial, []LogicalMonitorConfig{
		{Scale: 1.5, Monitors: []MonitorConfig{{Connector: "eDP-1", ModeID: edpModeID}}},
	})
	assert.NoError(t, err)
}

func TestCommitStale(t *testing.T) {
	state := NewState()
	held := state.Refresh(outputs.Topology{edpOutput()})
	candidate, err := state.Propose(held.Serial, nil)
	require.NoError(t, err)

	refreshed := state.Refresh(outputs.Topology{edpOutput(), hdmiOutput()})
	err = state.Commit(candidate)
	var staleErr *StaleSerialError
	require.True(t, errors.As(err, &staleErr))
	assert.Same(t, refreshed, state.Current())
}

func TestRefreshKeepsPrimary(t *testing.T) {
	state := NewState()
	held := state.Refresh(outputs.Topology{edpOutput(), hdmiOutput()})
	lm, _ := held.LogicalMonitorOf("eDP-1")
	require.True(t, lm.Primary)

	candidate, err := state.Propose(held.Serial, []LogicalMonitorConfig{
		{Scale: 1, Monitors: []MonitorConfig{{Connector: "eDP-1", ModeID: edpModeID}}},
		{X: 1920, Scale: 1, Primary: true, Monitors: []MonitorConfig{{Connector: "HDMI-1", ModeID: hdmiModeID}}},
	})
	require.NoError(t, err)
	require.NoError(t, state.Commit(candidate))

	snap := state.Refresh(outputs.Topology{edpOutput(), hdmiOutput()})
	lm, _ = snap.LogicalMonitorOf("HDMI-1")
	assert.True(t, lm.Primary)

	// primary unplugged
	snap = state.Refresh(outputs.Topology{edpOutput()})
	lm, _ = snap.LogicalMonitorOf("eDP-1")
	assert.True(t, lm.Primary)
}

func TestTransform(t *testing.T) {
	for idx, name := range []string{"normal", "90", "180", "270", "flipped", "flipped-90", "flipped-180", "flipped-270"} {
		tr, ok := parseTransform(name)
		assert.True(t, ok)
		assert.Equal(t, Transform(idx), tr)
		assert.Equal(t, name, tr.String())
	}
	tr, ok := parseTransform("")
	assert.True(t, ok)
	assert.Equal(t, TransformNormal, tr)
	_, ok = parseTransform("sideways")
	assert.False(t, ok)
	assert.False(t, Transform(8).Valid())
	assert.True(t, Transform270.rotated())
	assert.False(t, TransformFlipped180.rotated())
}

func TestAssignPrimary(t *testing.T) {
	lms := []LogicalMonitor{{X: 1920}, {X: 0, Y: 0}}
	assignPrimary(lms, "")
	assert.False(t, lms[0].Primary)
	assert.True(t, lms[1].Primary)

	lms = []LogicalMonitor{{X: 1920}, {X: 10}}
	assignPrimary(lms, "")
	assert.True(t, lms[0].Primary)

	assignPrimary(nil, "")
}

func TestMonitorDisplayName(t *testing.T) {
	builtin := Monitor{Connector: "eDP-1", Vendor: "BOE", Builtin: true}
	assert.Equal(t, gettext.Tr("Built-in display"), builtin.DisplayName())

	external := Monitor{Connector: "HDMI-1", Vendor: "Dell Inc.", Product: "DELL U2720Q"}
	assert.Equal(t, "Dell Inc. DELL U2720Q", external.DisplayName())

	unknown := Monitor{Connector: "DP-2"}
	assert.Equal(t, "DP-2", unknown.DisplayName())
}
