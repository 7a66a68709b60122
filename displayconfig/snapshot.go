// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"fmt"
	"strings"

	"github.com/linuxdeepin/go-lib/gettext"

	"github.com/linuxdeepin/displayconfig-daemon/common/scale"
	"github.com/linuxdeepin/displayconfig-daemon/outputs"
)

type Transform uint32

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

var transformNames = [...]string{
	"normal", "90", "180", "270",
	"flipped", "flipped-90", "flipped-180", "flipped-270",
}

func (t Transform) Valid() bool {
	return int(t) < len(transformNames)
}

func (t Transform) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Transform(%d)", uint32(t))
	}
	return transformNames[t]
}

// rotated reports whether width and height are swapped.
func (t Transform) rotated() bool {
	switch t {
	case Transform90, Transform270, TransformFlipped90, TransformFlipped270:
		return true
	}
	return false
}

func parseTransform(name string) (Transform, bool) {
	if name == "" {
		return TransformNormal, true
	}
	for idx, n := range transformNames {
		if n == name {
			return Transform(idx), true
		}
	}
	return TransformNormal, false
}

// Mode is one video mode of a monitor. RefreshRate is in mHz.
type Mode struct {
	ID              string
	Width           int32
	Height          int32
	RefreshRate     int32
	Preferred       bool
	PreferredScale  float64
	SupportedScales []float64
}

func (m *Mode) RefreshHz() float64 {
	return float64(m.RefreshRate) / 1000
}

func modeID(width, height, refresh int32) string {
	return fmt.Sprintf("%dx%d@%d.%03d", width, height, refresh/1000, refresh%1000)
}

func (m *Mode) supportsScale(s float64) bool {
	return scale.IsSupportedScale(m.Width, m.Height, s)
}

// Monitor is a connected physical output, enabled or not.
type Monitor struct {
	Connector string
	Vendor    string
	Product   string
	Serial    string
	Modes     []Mode
	Builtin   bool
	Connected bool
	// physical size, 0 when unknown
	WidthMm  int32
	HeightMm int32
}

func (m *Monitor) Mode(id string) *Mode {
	for idx := range m.Modes {
		if m.Modes[idx].ID == id {
			return &m.Modes[idx]
		}
	}
	return nil
}

func (m *Monitor) DisplayName() string {
	if m.Builtin {
		return gettext.Tr("Built-in display")
	}
	name := strings.TrimSpace(m.Vendor + " " + m.Product)
	if name == "" {
		return m.Connector
	}
	return name
}

var builtinConnectorPrefixes = []string{"eDP", "LVDS", "DSI"}

func isBuiltinConnector(name string) bool {
	for _, prefix := range builtinConnectorPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func connectorType(name string) string {
	idx := strings.LastIndexByte(name, '-')
	if idx <= 0 {
		return name
	}
	return name[:idx]
}

// MonitorMode names the connector a logical monitor drives and the mode
// it drives it with.
type MonitorMode struct {
	Connector string
	ModeID    string
}

// LogicalMonitor is an enabled region of the desktop. Disabled monitors
// have no logical monitor.
type LogicalMonitor struct {
	X         int32
	Y         int32
	Scale     float64
	Transform Transform
	Primary   bool
	Monitors  []MonitorMode
}

// Snapshot is an immutable view of the monitors and their layout.
type Snapshot struct {
	Serial          uint32
	Monitors        []Monitor
	LogicalMonitors []LogicalMonitor

	// serial of the snapshot a candidate was proposed against
	base uint32
}

func (s *Snapshot) Monitor(connector string) *Monitor {
	for idx := range s.Monitors {
		if s.Monitors[idx].Connector == connector {
			return &s.Monitors[idx]
		}
	}
	return nil
}

// LogicalMonitorOf returns the logical monitor driving connector and the
// mode id it uses, or nil when the monitor is disabled.
func (s *Snapshot) LogicalMonitorOf(connector string) (*LogicalMonitor, string) {
	for idx := range s.LogicalMonitors {
		lm := &s.LogicalMonitors[idx]
		for _, mm := range lm.Monitors {
			if mm.Connector == connector {
				return lm, mm.ModeID
			}
		}
	}
	return nil, ""
}

func (s *Snapshot) monitorIndex(connector string) int {
	for idx := range s.Monitors {
		if s.Monitors[idx].Connector == connector {
			return idx
		}
	}
	return len(s.Monitors)
}

// buildSnapshot converts a topology into a snapshot without serial. The
// primary monitor of prev is kept when it is still enabled.
func buildSnapshot(topology outputs.Topology, prev *Snapshot) *Snapshot {
	snap := &Snapshot{}
	seen := make(map[string]struct{}, len(topology))
	recommender := scale.NewRecommender()
	for _, out := range topology {
		if _, ok := seen[out.Name]; ok {
			logger.Warning("duplicate connector in topology:", out.Name)
			continue
		}
		seen[out.Name] = struct{}{}

		monitor := Monitor{
			Connector: out.Name,
			Vendor:    out.Make,
			Product:   out.Model,
			Serial:    out.Serial,
			Builtin:   isBuiltinConnector(out.Name),
			Connected: true,
			WidthMm:   out.PhysicalWidth,
			HeightMm:  out.PhysicalHeight,
			Modes:     make([]Mode, 0, len(out.Modes)),
		}
		for _, om := range out.Modes {
			monitor.Modes = append(monitor.Modes, Mode{
				ID:              modeID(om.Width, om.Height, om.Refresh),
				Width:           om.Width,
				Height:          om.Height,
				RefreshRate:     om.Refresh,
				Preferred:       om.Preferred,
				PreferredScale:  recommender.PreferredScale(om.Width, om.Height, out.PhysicalWidth, out.PhysicalHeight),
				SupportedScales: scale.SupportedScales(om.Width, om.Height),
			})
		}
		snap.Monitors = append(snap.Monitors, monitor)

		if !out.Enabled || out.CurrentMode == nil {
			continue
		}
		transform, ok := parseTransform(out.Transform)
		if !ok {
			logger.Warningf("unknown transform %q of %s", out.Transform, out.Name)
		}
		cur := out.CurrentMode
		snap.LogicalMonitors = append(snap.LogicalMonitors, LogicalMonitor{
			X:         out.X,
			Y:         out.Y,
			Scale:     out.Scale,
			Transform: transform,
			Monitors: []MonitorMode{{
				Connector: out.Name,
				ModeID:    modeID(cur.Width, cur.Height, cur.Refresh),
			}},
		})
	}

	var keepPrimary string
	if prev != nil {
		for _, lm := range prev.LogicalMonitors {
			if lm.Primary && len(lm.Monitors) > 0 {
				keepPrimary = lm.Monitors[0].Connector
			}
		}
	}
	assignPrimary(snap.LogicalMonitors, keepPrimary)
	return snap
}

// assignPrimary makes sure exactly one logical monitor is primary: the one
// driving connector if given and enabled, then the one at (0,0), then the
// first.
func assignPrimary(lms []LogicalMonitor, connector string) {
	if len(lms) == 0 {
		return
	}
	primary := -1
	if connector != "" {
		for idx := range lms {
			for _, mm := range lms[idx].Monitors {
				if mm.Connector == connector {
					primary = idx
				}
			}
		}
	}
	if primary < 0 {
		for idx := range lms {
			if lms[idx].X == 0 && lms[idx].Y == 0 {
				primary = idx
				break
			}
		}
	}
	if primary < 0 {
		primary = 0
	}
	for idx := range lms {
		lms[idx].Primary = idx == primary
	}
}
