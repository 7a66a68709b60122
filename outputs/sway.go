// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package outputs

import (
	"context"
	"sync"
	"time"

	"github.com/joshuarubin/go-sway"
	"golang.org/x/xerrors"
)

type swayReader struct {
	timeout time.Duration

	mu     sync.Mutex
	client sway.Client
	cancel context.CancelFunc
}

func newSwayReader(ctx context.Context, timeout time.Duration) (*swayReader, error) {
	r := &swayReader{timeout: timeout}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.connect(ctx)
	if err != nil {
		return nil, &HardwareQueryError{Backend: BackendSway, Err: err}
	}
	return r, nil
}

// connect must be called with r.mu held. The client lives until r.cancel.
func (r *swayReader) connect(ctx context.Context) error {
	clientCtx, cancel := context.WithCancel(context.Background())
	dialCtx, dialCancel := context.WithTimeout(ctx, r.timeout)
	defer dialCancel()

	type result struct {
		client sway.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		client, err := sway.New(clientCtx)
		ch <- result{client, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			cancel()
			return xerrors.Errorf("connect to sway ipc: %w", res.err)
		}
		r.client = res.client
		r.cancel = cancel
		return nil
	case <-dialCtx.Done():
		cancel()
		return xerrors.Errorf("connect to sway ipc: %w", dialCtx.Err())
	}
}

func (r *swayReader) Read(ctx context.Context) (Topology, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		err := r.connect(ctx)
		if err != nil {
			return nil, &HardwareQueryError{Backend: BackendSway, Err: err}
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	swayOutputs, err := r.client.GetOutputs(queryCtx)
	if err != nil {
		// sway may have restarted, dial again on the next read
		r.closeLocked()
		return nil, &HardwareQueryError{Backend: BackendSway, Err: err}
	}

	topology := make(Topology, 0, len(swayOutputs))
	for _, so := range swayOutputs {
		out := Output{
			Name:      so.Name,
			Make:      so.Make,
			Model:     so.Model,
			Serial:    so.Serial,
			Enabled:   so.Active,
			X:         int32(so.Rect.X),
			Y:         int32(so.Rect.Y),
			Scale:     so.Scale,
			Transform: so.Transform,
		}
		modes := make([]Mode, 0, len(so.Modes))
		for _, m := range so.Modes {
			modes = append(modes, Mode{
				Width:   int32(m.Width),
				Height:  int32(m.Height),
				Refresh: int32(m.Refresh),
			})
		}
		if so.Active && so.CurrentMode.Width > 0 && so.CurrentMode.Height > 0 {
			out.CurrentMode = &Mode{
				Width:   int32(so.CurrentMode.Width),
				Height:  int32(so.CurrentMode.Height),
				Refresh: int32(so.CurrentMode.Refresh),
			}
		}
		out.Modes = dedupModes(modes, out.CurrentMode)
		markPreferredMode(out.Modes)
		if out.Scale <= 0 {
			out.Scale = 1
		}
		topology = append(topology, out)
	}
	return topology, nil
}

// markPreferredMode flags the largest mode, then the fastest one, as
// preferred. sway does not report the preferred mode over ipc.
func markPreferredMode(modes []Mode) {
	best := -1
	for idx, mode := range modes {
		if best < 0 {
			best = idx
			continue
		}
		b := modes[best]
		area := int64(mode.Width) * int64(mode.Height)
		bestArea := int64(b.Width) * int64(b.Height)
		if area > bestArea || (area == bestArea && mode.Refresh > b.Refresh) {
			best = idx
		}
	}
	if best >= 0 {
		modes[best].Preferred = true
	}
}

func (r *swayReader) closeLocked() {
	if r.cancel != nil {
		r.cancel()
	}
	r.client = nil
	r.cancel = nil
}

func (r *swayReader) Close() error {
	r.mu.Lock()
	r.closeLocked()
	r.mu.Unlock()
	return nil
}
