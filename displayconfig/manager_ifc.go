// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"context"

	"github.com/godbus/dbus/v5"
)

func (m *Manager) GetInterfaceName() string {
	return dbusInterface
}

func (m *Manager) GetResources() (serial uint32, crtcs []crtcInfo, outputs []outputInfo,
	modes []modeInfo, maxScreenWidth int32, maxScreenHeight int32, busErr *dbus.Error) {
	snap, err := m.current()
	if err != nil {
		busErr = toBusError(err)
		return
	}
	res := toResources(snap)
	return res.Serial, res.Crtcs, res.Outputs, res.Modes, res.MaxWidth, res.MaxHeight, nil
}

func (m *Manager) GetCurrentState() (serial uint32, monitors []monitorInfo,
	logicalMonitors []logicalMonitorInfo, properties map[string]dbus.Variant, busErr *dbus.Error) {
	snap, err := m.current()
	if err != nil {
		busErr = toBusError(err)
		return
	}
	state := toCurrentState(snap)
	return state.Serial, state.Monitors, state.LogicalMonitors, state.Properties, nil
}

func (m *Manager) ApplyMonitorsConfig(serial uint32, method uint32, logicalMonitors []applyLogicalMonitor,
	properties map[string]dbus.Variant) *dbus.Error {
	logger.Debugf("dbus call ApplyMonitorsConfig serial: %d, method: %d, logical monitors: %d",
		serial, method, len(logicalMonitors))
	req, err := fromApplyRequest(serial, method, logicalMonitors, properties)
	if err == nil {
		err = m.applyMonitorsConfig(context.Background(), req)
	}
	if err != nil {
		logger.Warning("ApplyMonitorsConfig failed:", err)
	}
	return toBusError(err)
}
