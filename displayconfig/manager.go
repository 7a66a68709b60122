// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"context"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"

	"github.com/linuxdeepin/displayconfig-daemon/kanshi"
	"github.com/linuxdeepin/displayconfig-daemon/outputs"
)

var logger = log.NewLogger("daemon/displayconfig")

func SetLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
}

const (
	dbusServiceName = "org.gnome.Mutter.DisplayConfig"
	dbusPath        = "/org/gnome/Mutter/DisplayConfig"
	dbusInterface   = dbusServiceName
)

type profileWriter interface {
	Write(p *kanshi.Profile) (filename string, changed bool, err error)
}

type helperRestarter interface {
	EnsureRestarted(ctx context.Context) error
}

//go:generate dbusutil-gen em -type Manager

type Manager struct {
	service    *dbusutil.Service
	state      *State
	reader     outputs.Reader
	writer     profileWriter
	supervisor helperRestarter
	// emits MonitorsChanged
	emitChanged func()

	// serializes every snapshot change
	applyMu sync.Mutex

	PropsMu                    sync.RWMutex
	ApplyMonitorsConfigAllowed bool
	PowerSaveMode              int32
	PanelOrientationManaged    bool
	NightLightSupported        bool

	//nolint
	signals *struct {
		MonitorsChanged struct{}
	}
}

func newManager(service *dbusutil.Service, state *State, reader outputs.Reader,
	writer profileWriter, supervisor helperRestarter) *Manager {
	m := &Manager{
		service:                    service,
		state:                      state,
		reader:                     reader,
		writer:                     writer,
		supervisor:                 supervisor,
		ApplyMonitorsConfigAllowed: true,
	}
	m.emitChanged = m.emitMonitorsChanged
	return m
}

func (m *Manager) emitMonitorsChanged() {
	if m.service == nil {
		return
	}
	err := m.service.Emit(m, "MonitorsChanged")
	if err != nil {
		logger.Warning("failed to emit MonitorsChanged:", err)
	}
}

func (m *Manager) current() (*Snapshot, error) {
	snap := m.state.Current()
	if snap == nil {
		return nil, errNoSnapshot
	}
	return snap, nil
}

// refresh reads the topology and replaces the held snapshot.
func (m *Manager) refresh(ctx context.Context) error {
	topology, err := m.reader.Read(ctx)
	if err != nil {
		return err
	}
	m.applyMu.Lock()
	snap := m.state.Refresh(topology)
	m.applyMu.Unlock()
	logger.Debug("monitors refreshed:", spew.Sdump(snap))
	return nil
}

// applyMonitorsConfig validates req, writes the profile and restarts kanshi.
// The held snapshot only changes when every step succeeded.
func (m *Manager) applyMonitorsConfig(ctx context.Context, req *ApplyRequest) error {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	candidate, err := m.state.Propose(req.Serial, req.LogicalMonitors)
	if err != nil {
		return err
	}
	if req.Method == MethodVerify {
		logger.Debug("monitors config verified, serial", req.Serial)
		return nil
	}

	filename, changed, err := m.writer.Write(profileOf(candidate))
	if err != nil {
		return err
	}
	logger.Infof("profile %s written, changed: %v", filename, changed)

	err = m.supervisor.EnsureRestarted(ctx)
	if err != nil {
		logger.Warning("failed to restart kanshi, profile stays on disk:", err)
		return err
	}

	err = m.state.Commit(candidate)
	if err != nil {
		return err
	}
	logger.Debug("monitors config applied:", spew.Sdump(m.state.Current()))
	m.emitChanged()
	return nil
}

// restartHelper is used when profiles change outside of an apply.
func (m *Manager) restartHelper() {
	err := m.supervisor.EnsureRestarted(context.Background())
	if err != nil {
		logger.Warning(err)
	}
}
