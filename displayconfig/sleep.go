// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"github.com/godbus/dbus/v5"
	login1 "github.com/linuxdeepin/go-dbus-factory/system/org.freedesktop.login1"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/dbusutil/proxy"
)

// sleepConnector subscribes cb to PrepareForSleep and returns the
// unsubscribe func.
type sleepConnector func(cb func(isSleep bool)) (disconnect func(), err error)

// sleepMonitor re-polls the monitors after resume, outputs are often
// plugged or unplugged while suspended.
type sleepMonitor struct {
	onResume   func()
	disconnect func()
}

func newSleepMonitor(connect sleepConnector, onResume func()) (*sleepMonitor, error) {
	sm := &sleepMonitor{onResume: onResume}
	disconnect, err := connect(sm.handlePrepareForSleep)
	if err != nil {
		return nil, err
	}
	sm.disconnect = disconnect
	return sm, nil
}

func (sm *sleepMonitor) handlePrepareForSleep(isSleep bool) {
	logger.Debugf("PreparingForSleep status changed, isSleep: %v", isSleep)
	// 唤醒时 PrepareForSleep(false)
	if !isSleep {
		sm.onResume()
	}
}

func (sm *sleepMonitor) destroy() {
	if sm.disconnect != nil {
		sm.disconnect()
		sm.disconnect = nil
	}
}

func connectLogin1(cb func(isSleep bool)) (func(), error) {
	sysBus, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	sigLoop := dbusutil.NewSignalLoop(sysBus, 10)
	sigLoop.Start()
	login1Manager := login1.NewManager(sysBus)
	login1Manager.InitSignalExt(sigLoop, true)
	disconnect := func() {
		login1Manager.RemoveHandler(proxy.RemoveAllHandlers)
		sigLoop.Stop()
	}
	_, err = login1Manager.ConnectPrepareForSleep(cb)
	if err != nil {
		disconnect()
		return nil, err
	}
	return disconnect, nil
}
