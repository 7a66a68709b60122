// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package outputs queries the compositor for the live set of physical outputs.
package outputs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/linuxdeepin/go-lib/log"
)

var logger = log.NewLogger("daemon/outputs")

func SetLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
}

const (
	BackendAuto     = "auto"
	BackendSway     = "sway"
	BackendWlrRandr = "wlr-randr"
)

const defaultQueryTimeout = 3 * time.Second

// Mode is a video mode as reported by the compositor. Refresh is in mHz.
type Mode struct {
	Width     int32
	Height    int32
	Refresh   int32
	Preferred bool
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d.%03dHz", m.Width, m.Height, m.Refresh/1000, m.Refresh%1000)
}

// Output describes one physical output and its current geometry.
type Output struct {
	Name   string
	Make   string
	Model  string
	Serial string

	Modes       []Mode
	CurrentMode *Mode

	Enabled   bool
	X         int32
	Y         int32
	Scale     float64
	Transform string

	// physical size in millimetres, 0 when unknown
	PhysicalWidth  int32
	PhysicalHeight int32
}

// Topology is the raw result of one query, in compositor order.
type Topology []Output

// Reader enumerates the outputs of the compositor.
type Reader interface {
	Read(ctx context.Context) (Topology, error)
	Close() error
}

// HardwareQueryError reports that the compositor could not be reached or
// answered with something unusable.
type HardwareQueryError struct {
	Backend string
	Err     error
}

func (e *HardwareQueryError) Error() string {
	return fmt.Sprintf("query %s outputs: %v", e.Backend, e.Err)
}

func (e *HardwareQueryError) Unwrap() error {
	return e.Err
}

// NewReader creates the reader for backend. Every Read is bounded by timeout.
func NewReader(ctx context.Context, backend string, timeout time.Duration) (Reader, error) {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	if backend == "" || backend == BackendAuto {
		backend = detectBackend()
		logger.Debug("detected output backend:", backend)
	}

	switch backend {
	case BackendSway:
		return newSwayReader(ctx, timeout)
	case BackendWlrRandr:
		return newWlrRandrReader(timeout), nil
	default:
		return nil, fmt.Errorf("unsupported output backend %q", backend)
	}
}

func detectBackend() string {
	if strings.TrimSpace(os.Getenv("SWAYSOCK")) != "" {
		return BackendSway
	}
	return BackendWlrRandr
}

func dedupModes(modes []Mode, current *Mode) []Mode {
	result := make([]Mode, 0, len(modes)+1)
	seen := make(map[Mode]struct{}, len(modes))
	for _, mode := range modes {
		key := Mode{Width: mode.Width, Height: mode.Height, Refresh: mode.Refresh}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, mode)
	}
	if current != nil {
		key := Mode{Width: current.Width, Height: current.Height, Refresh: current.Refresh}
		if _, ok := seen[key]; !ok {
			// custom modes are not part of the advertised list
			result = append(result, key)
		}
	}
	return result
}
