// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxdeepin/displayconfig-daemon/outputs"
)

type transitionRecorder struct {
	mu          sync.Mutex
	transitions [][2]watcherState
}

func (r *transitionRecorder) record(from, to watcherState) {
	r.mu.Lock()
	r.transitions = append(r.transitions, [2]watcherState{from, to})
	r.mu.Unlock()
}

func (r *transitionRecorder) take() [][2]watcherState {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := r.transitions
	r.transitions = nil
	return result
}

func newTestWatcher(t *testing.T, topology outputs.Topology) (*Watcher, *fakeReader, *int32, *transitionRecorder) {
	reader := &fakeReader{}
	reader.set(topology, nil)
	m := newManager(nil, NewState(), reader, nil, &fakeRestarter{})
	var emitted int32
	m.emitChanged = func() {
		atomic.AddInt32(&emitted, 1)
	}
	require.NoError(t, m.refresh(context.Background()))

	w := NewWatcher(m, 10*time.Millisecond)
	rec := &transitionRecorder{}
	w.onTransition = rec.record
	return w, reader, &emitted, rec
}

func TestWatcherNoChange(t *testing.T) {
	w, _, emitted, rec := newTestWatcher(t, outputs.Topology{edpOutput(), hdmiOutput()})
	held := w.manager.state.Current()

	assert.False(t, w.poll(context.Background()))
	assert.Same(t, held, w.manager.state.Current())
	assert.Equal(t, int32(0), atomic.LoadInt32(emitted))
	assert.Equal(t, [][2]watcherState{
		{watcherIdle, watcherPolling},
		{watcherPolling, watcherIdle},
	}, rec.take())
	assert.Equal(t, watcherIdle, w.getState())
}

func TestWatcherChange(t *testing.T) {
	w, reader, emitted, rec := newTestWatcher(t, outputs.Topology{edpOutput()})
	serial := w.manager.state.Current().Serial

	reader.set(outputs.Topology{edpOutput(), hdmiOutput()}, nil)
	assert.True(t, w.poll(context.Background()))
	assert.Greater(t, w.manager.state.Current().Serial, serial)
	assert.Len(t, w.manager.state.Current().Monitors, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(emitted))
	assert.Equal(t, [][2]watcherState{
		{watcherIdle, watcherPolling},
		{watcherPolling, watcherRefreshing},
		{watcherRefreshing, watcherIdle},
	}, rec.take())

	// nothing changed since
	assert.False(t, w.poll(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(emitted))
}

func TestWatcherGeometryChange(t *testing.T) {
	w, reader, emitted, _ := newTestWatcher(t, outputs.Topology{edpOutput()})

	moved := edpOutput()
	moved.Scale = 2
	reader.set(outputs.Topology{moved}, nil)
	assert.True(t, w.poll(context.Background()))
	assert.Equal(t, 2.0, w.manager.state.Current().LogicalMonitors[0].Scale)

	reader.set(outputs.Topology{disabled(moved)}, nil)
	assert.True(t, w.poll(context.Background()))
	assert.Empty(t, w.manager.state.Current().LogicalMonitors)
	assert.Equal(t, int32(2), atomic.LoadInt32(emitted))
}

func TestWatcherHardwareError(t *testing.T) {
	w, reader, emitted, rec := newTestWatcher(t, outputs.Topology{edpOutput()})
	held := w.manager.state.Current()

	reader.set(nil, &outputs.HardwareQueryError{Backend: outputs.BackendWlrRandr, Err: errors.New("timeout")})
	assert.False(t, w.poll(context.Background()))
	assert.Same(t, held, w.manager.state.Current())
	assert.Equal(t, int32(0), atomic.LoadInt32(emitted))
	assert.Equal(t, [][2]watcherState{
		{watcherIdle, watcherPolling},
		{watcherPolling, watcherIdle},
	}, rec.take())
}

func TestWatcherDiscardsOutdatedRead(t *testing.T) {
	w, reader, emitted, _ := newTestWatcher(t, outputs.Topology{edpOutput()})
	m := w.manager

	reader.set(outputs.Topology{edpOutput(), hdmiOutput()}, nil)
	var once sync.Once
	var applied *Snapshot
	reader.onRead = func() {
		once.Do(func() {
			// an apply commits while the compositor is queried
			m.applyMu.Lock()
			candidate, err := m.state.Propose(m.state.Current().Serial, nil)
			require.NoError(t, err)
			require.NoError(t, m.state.Commit(candidate))
			applied = m.state.Current()
			m.applyMu.Unlock()
		})
	}

	assert.False(t, w.poll(context.Background()))
	assert.Same(t, applied, m.state.Current())
	assert.Equal(t, int32(0), atomic.LoadInt32(emitted))

	// the next tick picks the change up
	assert.True(t, w.poll(context.Background()))
	assert.Len(t, m.state.Current().Monitors, 2)
}

func TestWatcherServe(t *testing.T) {
	w, reader, emitted, _ := newTestWatcher(t, outputs.Topology{edpOutput()})
	w.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Serve(ctx)
	}()

	reader.set(outputs.Topology{edpOutput(), hdmiOutput()}, nil)
	w.Trigger()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(emitted) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSameLayout(t *testing.T) {
	a := buildSnapshot(outputs.Topology{edpOutput()}, nil)
	b := buildSnapshot(outputs.Topology{edpOutput()}, nil)
	b.Serial = 42
	assert.True(t, sameLayout(a, b))

	moved := edpOutput()
	moved.X = 100
	c := buildSnapshot(outputs.Topology{moved}, nil)
	assert.False(t, sameLayout(a, c))
}
