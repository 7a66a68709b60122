// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package outputs

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os/exec"
	"time"

	"golang.org/x/xerrors"
)

const wlrRandrBin = "wlr-randr"

type wlrRandrOutput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Serial       string `json:"serial"`
	PhysicalSize struct {
		Width  int32 `json:"width"`
		Height int32 `json:"height"`
	} `json:"physical_size"`
	Enabled bool `json:"enabled"`
	Modes   []struct {
		Width     int32   `json:"width"`
		Height    int32   `json:"height"`
		Refresh   float64 `json:"refresh"`
		Preferred bool    `json:"preferred"`
		Current   bool    `json:"current"`
	} `json:"modes"`
	Position struct {
		X int32 `json:"x"`
		Y int32 `json:"y"`
	} `json:"position"`
	Transform string  `json:"transform"`
	Scale     float64 `json:"scale"`
}

type wlrRandrReader struct {
	timeout time.Duration
	// run executes wlr-randr and returns its stdout
	run func(ctx context.Context) ([]byte, error)
}

func newWlrRandrReader(timeout time.Duration) *wlrRandrReader {
	return &wlrRandrReader{
		timeout: timeout,
		run:     runWlrRandr,
	}
}

func runWlrRandr(ctx context.Context) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, wlrRandrBin, "--json")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if stderr.Len() > 0 {
			return nil, xerrors.Errorf("%s: %w: %s", wlrRandrBin, err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, xerrors.Errorf("%s: %w", wlrRandrBin, err)
	}
	return out, nil
}

func (r *wlrRandrReader) Read(ctx context.Context) (Topology, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.run(queryCtx)
	if err != nil {
		return nil, &HardwareQueryError{Backend: BackendWlrRandr, Err: err}
	}
	topology, err := parseWlrRandr(out)
	if err != nil {
		return nil, &HardwareQueryError{Backend: BackendWlrRandr, Err: err}
	}
	return topology, nil
}

func parseWlrRandr(data []byte) (Topology, error) {
	var results []wlrRandrOutput
	err := json.Unmarshal(data, &results)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse %s output: %w", wlrRandrBin, err)
	}

	topology := make(Topology, 0, len(results))
	for _, wo := range results {
		if wo.Name == "" {
			return nil, xerrors.New("output without name")
		}
		out := Output{
			Name:           wo.Name,
			Make:           wo.Make,
			Model:          wo.Model,
			Serial:         wo.Serial,
			Enabled:        wo.Enabled,
			X:              wo.Position.X,
			Y:              wo.Position.Y,
			Scale:          wo.Scale,
			Transform:      wo.Transform,
			PhysicalWidth:  wo.PhysicalSize.Width,
			PhysicalHeight: wo.PhysicalSize.Height,
		}
		modes := make([]Mode, 0, len(wo.Modes))
		for _, m := range wo.Modes {
			mode := Mode{
				Width:     m.Width,
				Height:    m.Height,
				Refresh:   int32(math.Round(m.Refresh * 1000)),
				Preferred: m.Preferred,
			}
			if m.Current && wo.Enabled {
				current := mode
				current.Preferred = false
				out.CurrentMode = &current
			}
			modes = append(modes, mode)
		}
		out.Modes = dedupModes(modes, out.CurrentMode)
		if out.Scale <= 0 {
			out.Scale = 1
		}
		topology = append(topology, out)
	}
	return topology, nil
}

func (r *wlrRandrReader) Close() error {
	return nil
}
