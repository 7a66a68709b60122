// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"context"
	"sync"

	"github.com/linuxdeepin/displayconfig-daemon/outputs"
)

type fakeReader struct {
	mu       sync.Mutex
	topology outputs.Topology
	err      error
	reads    int
	// runs inside Read, after the topology was taken
	onRead func()
}

func (r *fakeReader) set(topology outputs.Topology, err error) {
	r.mu.Lock()
	r.topology = topology
	r.err = err
	r.mu.Unlock()
}

func (r *fakeReader) Read(ctx context.Context) (outputs.Topology, error) {
	r.mu.Lock()
	r.reads++
	topology, err, hook := r.topology, r.err, r.onRead
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return append(outputs.Topology(nil), topology...), nil
}

func (r *fakeReader) Close() error {
	return nil
}

type fakeRestarter struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (r *fakeRestarter) EnsureRestarted(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *fakeRestarter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func edpOutput() outputs.Output {
	return outputs.Output{
		Name:           "eDP-1",
		Make:           "BOE",
		Model:          "0x0A1C",
		Modes:          []outputs.Mode{{Width: 1920, Height: 1080, Refresh: 60000, Preferred: true}},
		CurrentMode:    &outputs.Mode{Width: 1920, Height: 1080, Refresh: 60000},
		Enabled:        true,
		Scale:          1,
		Transform:      "normal",
		PhysicalWidth:  310,
		PhysicalHeight: 174,
	}
}

func hdmiOutput() outputs.Output {
	return outputs.Output{
		Name:   "HDMI-1",
		Make:   "Dell Inc.",
		Model:  "DELL U2720Q",
		Serial: "ABCD123",
		Modes: []outputs.Mode{
			{Width: 3840, Height: 2160, Refresh: 60000, Preferred: true},
			{Width: 1920, Height: 1080, Refresh: 60000},
		},
		CurrentMode:    &outputs.Mode{Width: 3840, Height: 2160, Refresh: 60000},
		Enabled:        true,
		X:              1920,
		Scale:          1,
		Transform:      "normal",
		PhysicalWidth:  600,
		PhysicalHeight: 340,
	}
}

func disabled(out outputs.Output) outputs.Output {
	out.Enabled = false
	out.CurrentMode = nil
	return out
}

const (
	edpModeID  = "1920x1080@60.000"
	hdmiModeID = "3840x2160@60.000"
)
