// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/linuxdeepin/displayconfig-daemon/outputs"
)

// State holds the current snapshot. Readers never block; Refresh and
// Commit are serialized.
type State struct {
	mu   sync.Mutex
	held atomic.Pointer[Snapshot]
	// last serial handed out
	serial uint32
}

func NewState() *State {
	return &State{}
}

// Current returns the held snapshot, nil before the first Refresh.
func (s *State) Current() *Snapshot {
	return s.held.Load()
}

// Refresh replaces the held snapshot with one built from topology.
func (s *State) Refresh(topology outputs.Topology) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := buildSnapshot(topology, s.held.Load())
	s.serial++
	snap.Serial = s.serial
	s.held.Store(snap)
	return snap
}

// Propose validates a layout against the held snapshot and returns the
// candidate snapshot. The held snapshot is not changed.
func (s *State) Propose(serial uint32, configs []LogicalMonitorConfig) (*Snapshot, error) {
	held := s.held.Load()
	if held == nil {
		return nil, errNoSnapshot
	}
	if serial != held.Serial {
		return nil, &StaleSerialError{Current: held.Serial, Requested: serial}
	}

	used := make(map[string]struct{})
	primaries := 0
	lms := make([]LogicalMonitor, 0, len(configs))
	for _, cfg := range configs {
		if len(cfg.Monitors) == 0 {
			return nil, &InvalidAssignmentError{Reason: "logical monitor without monitors"}
		}
		if len(cfg.Monitors) > 1 {
			return nil, &InvalidAssignmentError{Connector: cfg.Monitors[0].Connector,
				Reason: "mirroring is not supported"}
		}
		mm := cfg.Monitors[0]
		monitor := held.Monitor(mm.Connector)
		if monitor == nil {
			return nil, &InvalidAssignmentError{Connector: mm.Connector, Reason: "unknown connector"}
		}
		if _, ok := used[mm.Connector]; ok {
			return nil, &InvalidAssignmentError{Connector: mm.Connector, Reason: "connector used twice"}
		}
		used[mm.Connector] = struct{}{}

		mode := monitor.Mode(mm.ModeID)
		if mode == nil {
			return nil, &InvalidAssignmentError{Connector: mm.Connector, Reason: "unknown mode " + mm.ModeID}
		}
		if !cfg.Transform.Valid() {
			return nil, &InvalidAssignmentError{Connector: mm.Connector, Reason: "invalid transform " + cfg.Transform.String()}
		}
		if !(cfg.Scale > 0) || !isAllowedScale(held, mm.Connector, mode, cfg.Scale) {
			return nil, &InvalidAssignmentError{Connector: mm.Connector, Reason: "unsupported scale"}
		}
		if cfg.Primary {
			primaries++
		}

		lms = append(lms, LogicalMonitor{
			X:         cfg.X,
			Y:         cfg.Y,
			Scale:     cfg.Scale,
			Transform: cfg.Transform,
			Primary:   cfg.Primary,
			Monitors:  []MonitorMode{{Connector: mm.Connector, ModeID: mode.ID}},
		})
	}
	if primaries > 1 {
		return nil, &InvalidAssignmentError{Reason: "more than one primary monitor"}
	}
	if primaries == 0 {
		assignPrimary(lms, "")
	}
	// keep the monitor order so that equal layouts compare equal
	sort.SliceStable(lms, func(i, j int) bool {
		return held.monitorIndex(lms[i].Monitors[0].Connector) < held.monitorIndex(lms[j].Monitors[0].Connector)
	})

	return &Snapshot{
		Serial:          held.Serial + 1,
		Monitors:        held.Monitors,
		LogicalMonitors: lms,
		base:            held.Serial,
	}, nil
}

// isAllowedScale accepts the supported scales of the mode, and the scale
// the monitor already runs at with this mode.
func isAllowedScale(held *Snapshot, connector string, mode *Mode, s float64) bool {
	if mode.supportsScale(s) {
		return true
	}
	lm, curMode := held.LogicalMonitorOf(connector)
	return lm != nil && curMode == mode.ID && math.Abs(lm.Scale-s) < 0.0001
}

// Commit makes candidate the held snapshot, unless the held snapshot
// changed since the candidate was proposed.
func (s *State) Commit(candidate *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.held.Load()
	if held == nil || held.Serial != candidate.base {
		var current uint32
		if held != nil {
			current = held.Serial
		}
		return &StaleSerialError{Current: current, Requested: candidate.base}
	}
	s.serial++
	snap := *candidate
	snap.Serial = s.serial
	s.held.Store(&snap)
	return nil
}
