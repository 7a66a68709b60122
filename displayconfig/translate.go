// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"fmt"
	"math"

	"github.com/godbus/dbus/v5"
)

const (
	maxScreenWidth  = 16384
	maxScreenHeight = 16384

	// logical layout mode of Mutter
	layoutModeLogical = 1
)

type ApplyMethod uint32

const (
	MethodVerify ApplyMethod = iota
	MethodTemporary
	MethodPersistent
)

// MonitorConfig selects the mode of one connector in an apply request.
type MonitorConfig struct {
	Connector string
	ModeID    string
}

// LogicalMonitorConfig is one requested logical monitor.
type LogicalMonitorConfig struct {
	X         int32
	Y         int32
	Scale     float64
	Transform Transform
	Primary   bool
	Monitors  []MonitorConfig
}

type ApplyRequest struct {
	Serial          uint32
	Method          ApplyMethod
	LogicalMonitors []LogicalMonitorConfig
}

// GetResources: a(uxiiiiiuaua{sv})
type crtcInfo struct {
	ID               uint32
	WinsysID         int64
	X                int32
	Y                int32
	Width            int32
	Height           int32
	CurrentMode      int32
	CurrentTransform uint32
	Transforms       []uint32
	Properties       map[string]dbus.Variant
}

// GetResources: a(uxiausauaua{sv})
type outputInfo struct {
	ID           uint32
	WinsysID     int64
	CurrentCrtc  int32
	PossibleCrtc []uint32
	Name         string
	Modes        []uint32
	Clones       []uint32
	Properties   map[string]dbus.Variant
}

// GetResources: a(uxuudu)
type modeInfo struct {
	ID        uint32
	WinsysID  int64
	Width     uint32
	Height    uint32
	Frequency float64
	Flags     uint32
}

type resources struct {
	Serial    uint32
	Crtcs     []crtcInfo
	Outputs   []outputInfo
	Modes     []modeInfo
	MaxWidth  int32
	MaxHeight int32
}

// (ssss)
type monitorSpec struct {
	Connector string
	Vendor    string
	Product   string
	Serial    string
}

// (siiddada{sv})
type monitorMode struct {
	ID              string
	Width           int32
	Height          int32
	RefreshRate     float64
	PreferredScale  float64
	SupportedScales []float64
	Properties      map[string]dbus.Variant
}

// ((ssss)a(siiddada{sv})a{sv})
type monitorInfo struct {
	Spec       monitorSpec
	Modes      []monitorMode
	Properties map[string]dbus.Variant
}

// (iiduba(ssss)a{sv})
type logicalMonitorInfo struct {
	X          int32
	Y          int32
	Scale      float64
	Transform  uint32
	Primary    bool
	Monitors   []monitorSpec
	Properties map[string]dbus.Variant
}

type currentState struct {
	Serial          uint32
	Monitors        []monitorInfo
	LogicalMonitors []logicalMonitorInfo
	Properties      map[string]dbus.Variant
}

// ApplyMonitorsConfig: (ssa{sv})
type applyMonitor struct {
	Connector  string
	ModeID     string
	Properties map[string]dbus.Variant
}

// ApplyMonitorsConfig: (iiduba(ssa{sv}))
type applyLogicalMonitor struct {
	X         int32
	Y         int32
	Scale     float64
	Transform uint32
	Primary   bool
	Monitors  []applyMonitor
}

var allTransforms = []uint32{0, 1, 2, 3, 4, 5, 6, 7}

func monitorSpecOf(m *Monitor) monitorSpec {
	return monitorSpec{
		Connector: m.Connector,
		Vendor:    m.Vendor,
		Product:   m.Product,
		Serial:    m.Serial,
	}
}

// toResources describes every monitor as one output driven by its own crtc.
func toResources(snap *Snapshot) *resources {
	res := &resources{
		Serial:    snap.Serial,
		Crtcs:     make([]crtcInfo, 0, len(snap.Monitors)),
		Outputs:   make([]outputInfo, 0, len(snap.Monitors)),
		Modes:     []modeInfo{},
		MaxWidth:  maxScreenWidth,
		MaxHeight: maxScreenHeight,
	}

	for idx := range snap.Monitors {
		monitor := &snap.Monitors[idx]
		id := uint32(idx)
		lm, curModeID := snap.LogicalMonitorOf(monitor.Connector)

		crtc := crtcInfo{
			ID:          id,
			WinsysID:    int64(id),
			CurrentMode: -1,
			Transforms:  allTransforms,
			Properties:  map[string]dbus.Variant{},
		}
		modeIds := make([]uint32, 0, len(monitor.Modes))
		for _, mode := range monitor.Modes {
			globalId := uint32(len(res.Modes))
			res.Modes = append(res.Modes, modeInfo{
				ID:        globalId,
				WinsysID:  int64(globalId),
				Width:     uint32(mode.Width),
				Height:    uint32(mode.Height),
				Frequency: mode.RefreshHz(),
			})
			modeIds = append(modeIds, globalId)

			if lm != nil && mode.ID == curModeID {
				crtc.CurrentMode = int32(globalId)
				crtc.X = lm.X
				crtc.Y = lm.Y
				crtc.Width, crtc.Height = mode.Width, mode.Height
				if lm.Transform.rotated() {
					crtc.Width, crtc.Height = mode.Height, mode.Width
				}
				crtc.CurrentTransform = uint32(lm.Transform)
			}
		}
		res.Crtcs = append(res.Crtcs, crtc)

		currentCrtc := int32(-1)
		if crtc.CurrentMode >= 0 {
			currentCrtc = int32(id)
		}
		res.Outputs = append(res.Outputs, outputInfo{
			ID:           id,
			WinsysID:     int64(id),
			CurrentCrtc:  currentCrtc,
			PossibleCrtc: []uint32{id},
			Name:         monitor.Connector,
			Modes:        modeIds,
			Clones:       []uint32{},
			Properties: map[string]dbus.Variant{
				"vendor":         dbus.MakeVariant(monitor.Vendor),
				"product":        dbus.MakeVariant(monitor.Product),
				"serial":         dbus.MakeVariant(monitor.Serial),
				"display-name":   dbus.MakeVariant(monitor.DisplayName()),
				"width-mm":       dbus.MakeVariant(monitor.WidthMm),
				"height-mm":      dbus.MakeVariant(monitor.HeightMm),
				"primary":        dbus.MakeVariant(lm != nil && lm.Primary),
				"presentation":   dbus.MakeVariant(false),
				"connector-type": dbus.MakeVariant(connectorType(monitor.Connector)),
				"backlight":      dbus.MakeVariant(int32(-1)),
			},
		})
	}
	return res
}

func globalProperties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"layout-mode":                   dbus.MakeVariant(uint32(layoutModeLogical)),
		"supports-changing-layout-mode": dbus.MakeVariant(false),
		"global-scale-required":         dbus.MakeVariant(false),
		"legacy-ui-scaling-factor":      dbus.MakeVariant(int32(1)),
	}
}

// toCurrentState lists every monitor, and a logical monitor only for the
// enabled ones.
func toCurrentState(snap *Snapshot) *currentState {
	state := &currentState{
		Serial:          snap.Serial,
		Monitors:        make([]monitorInfo, 0, len(snap.Monitors)),
		LogicalMonitors: make([]logicalMonitorInfo, 0, len(snap.LogicalMonitors)),
		Properties:      globalProperties(),
	}

	for idx := range snap.Monitors {
		monitor := &snap.Monitors[idx]
		_, curModeID := snap.LogicalMonitorOf(monitor.Connector)
		modes := make([]monitorMode, 0, len(monitor.Modes))
		for _, mode := range monitor.Modes {
			props := map[string]dbus.Variant{}
			if mode.ID == curModeID {
				props["is-current"] = dbus.MakeVariant(true)
			}
			if mode.Preferred {
				props["is-preferred"] = dbus.MakeVariant(true)
			}
			modes = append(modes, monitorMode{
				ID:              mode.ID,
				Width:           mode.Width,
				Height:          mode.Height,
				RefreshRate:     mode.RefreshHz(),
				PreferredScale:  mode.PreferredScale,
				SupportedScales: mode.SupportedScales,
				Properties:      props,
			})
		}
		state.Monitors = append(state.Monitors, monitorInfo{
			Spec:  monitorSpecOf(monitor),
			Modes: modes,
			Properties: map[string]dbus.Variant{
				"width-mm":     dbus.MakeVariant(monitor.WidthMm),
				"height-mm":    dbus.MakeVariant(monitor.HeightMm),
				"is-builtin":   dbus.MakeVariant(monitor.Builtin),
				"display-name": dbus.MakeVariant(monitor.DisplayName()),
			},
		})
	}

	for _, lm := range snap.LogicalMonitors {
		specs := make([]monitorSpec, 0, len(lm.Monitors))
		for _, mm := range lm.Monitors {
			monitor := snap.Monitor(mm.Connector)
			if monitor == nil {
				continue
			}
			specs = append(specs, monitorSpecOf(monitor))
		}
		state.LogicalMonitors = append(state.LogicalMonitors, logicalMonitorInfo{
			X:          lm.X,
			Y:          lm.Y,
			Scale:      lm.Scale,
			Transform:  uint32(lm.Transform),
			Primary:    lm.Primary,
			Monitors:   specs,
			Properties: map[string]dbus.Variant{},
		})
	}
	return state
}

// fromApplyRequest checks the shape of an ApplyMonitorsConfig call.
func fromApplyRequest(serial, method uint32, logicalMonitors []applyLogicalMonitor,
	properties map[string]dbus.Variant) (*ApplyRequest, error) {
	if method > uint32(MethodPersistent) {
		return nil, &MalformedRequestError{Reason: fmt.Sprintf("unknown method %d", method)}
	}
	if v, ok := properties["layout-mode"]; ok {
		layoutMode, ok := v.Value().(uint32)
		if !ok || layoutMode != layoutModeLogical {
			return nil, &MalformedRequestError{Reason: fmt.Sprintf("unsupported layout-mode %v", v)}
		}
	}

	req := &ApplyRequest{
		Serial:          serial,
		Method:          ApplyMethod(method),
		LogicalMonitors: make([]LogicalMonitorConfig, 0, len(logicalMonitors)),
	}
	for idx, lm := range logicalMonitors {
		if len(lm.Monitors) == 0 {
			return nil, &MalformedRequestError{Reason: fmt.Sprintf("logical monitor %d has no monitors", idx)}
		}
		if math.IsNaN(lm.Scale) || math.IsInf(lm.Scale, 0) {
			return nil, &MalformedRequestError{Reason: fmt.Sprintf("logical monitor %d has invalid scale", idx)}
		}
		cfg := LogicalMonitorConfig{
			X:         lm.X,
			Y:         lm.Y,
			Scale:     lm.Scale,
			Transform: Transform(lm.Transform),
			Primary:   lm.Primary,
			Monitors:  make([]MonitorConfig, 0, len(lm.Monitors)),
		}
		for _, m := range lm.Monitors {
			if m.Connector == "" || m.ModeID == "" {
				return nil, &MalformedRequestError{Reason: fmt.Sprintf("logical monitor %d: empty connector or mode", idx)}
			}
			cfg.Monitors = append(cfg.Monitors, MonitorConfig{Connector: m.Connector, ModeID: m.ModeID})
		}
		req.LogicalMonitors = append(req.LogicalMonitors, cfg)
	}
	return req, nil
}
