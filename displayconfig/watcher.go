// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const defaultPollInterval = 700 * time.Millisecond

type watcherState int32

const (
	watcherIdle watcherState = iota
	watcherPolling
	watcherRefreshing
)

func (s watcherState) String() string {
	switch s {
	case watcherIdle:
		return "Idle"
	case watcherPolling:
		return "Polling"
	case watcherRefreshing:
		return "Refreshing"
	}
	return "Unknown"
}

// Watcher polls the compositor and refreshes the state when the monitors
// or their layout change. MonitorsChanged is emitted on the way from
// Polling to Refreshing only.
type Watcher struct {
	manager  *Manager
	interval time.Duration
	trigger  chan struct{}
	state    int32

	// called on every state change
	onTransition func(from, to watcherState)
}

func NewWatcher(manager *Manager, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{
		manager:  manager,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

func (w *Watcher) String() string {
	return "topology-watcher"
}

// Trigger asks for a poll without waiting for the next tick.
func (w *Watcher) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) getState() watcherState {
	return watcherState(atomic.LoadInt32(&w.state))
}

func (w *Watcher) setState(to watcherState) {
	from := watcherState(atomic.SwapInt32(&w.state, int32(to)))
	if from != to && w.onTransition != nil {
		w.onTransition(from, to)
	}
}

// Serve polls until ctx is done.
func (w *Watcher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-w.trigger:
			logger.Debug("poll triggered")
		}
		w.poll(ctx)
	}
}

// poll reports whether the held snapshot was replaced.
func (w *Watcher) poll(ctx context.Context) bool {
	m := w.manager
	w.setState(watcherPolling)
	defer w.setState(watcherIdle)

	held := m.state.Current()
	topology, err := m.reader.Read(ctx)
	if err != nil {
		logger.Warning("skip poll:", err)
		return false
	}
	if held != nil && sameLayout(held, buildSnapshot(topology, held)) {
		return false
	}

	m.applyMu.Lock()
	if m.state.Current() != held {
		// an apply or another refresh finished while reading
		m.applyMu.Unlock()
		logger.Debug("discard outdated topology")
		return false
	}
	w.setState(watcherRefreshing)
	snap := m.state.Refresh(topology)
	m.applyMu.Unlock()

	logger.Info("monitors changed, serial", snap.Serial)
	logger.Debug(spew.Sdump(snap))
	m.emitChanged()
	return true
}

// sameLayout compares two snapshots ignoring their serials.
func sameLayout(a, b *Snapshot) bool {
	return cmp.Equal(a, b,
		cmpopts.IgnoreFields(Snapshot{}, "Serial"),
		cmpopts.IgnoreUnexported(Snapshot{}),
		cmpopts.EquateEmpty(),
	)
}
