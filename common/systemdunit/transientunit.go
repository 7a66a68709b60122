// SPDX-FileCopyrightText: 2025 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package systemdunit runs commands as transient systemd units.
package systemdunit

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	systemd1 "github.com/linuxdeepin/go-dbus-factory/system/org.freedesktop.systemd1"
)

const pollInterval = 100 * time.Millisecond

type TransientUnit struct {
	Dbus        *dbus.Conn
	Commands    []string
	UnitName    string
	Description string
	Environment []string
}

type execStart struct {
	Path             string   // the binary path to execute
	Args             []string // an array with all arguments to pass to the executed command, starting with argument 0
	UncleanIsFailure bool     // a boolean whether it should be considered a failure if the process exits uncleanly
}

func CheckUnitExist(conn *dbus.Conn, name string) bool {
	systemd := systemd1.NewManager(conn)
	_, err := systemd.GetUnit(0, name)
	return err == nil
}

func (t *TransientUnit) properties() []systemd1.Property {
	properties := []systemd1.Property{
		{Name: "Type", Value: dbus.MakeVariant("simple")},
		{Name: "Description", Value: dbus.MakeVariant(t.Description)},
		// kanshi is restarted by stopping the unit, do not keep it around
		{Name: "CollectMode", Value: dbus.MakeVariant("inactive-or-failed")},
	}
	if len(t.Environment) > 0 {
		properties = append(properties, systemd1.Property{Name: "Environment", Value: dbus.MakeVariant(t.Environment)})
	}
	properties = append(properties, systemd1.Property{Name: "ExecStart", Value: dbus.MakeVariant([]execStart{{
		Path:             t.Commands[0],
		Args:             t.Commands,
		UncleanIsFailure: false,
	}})})
	return properties
}

// Start launches the commands in a new transient unit, replacing a failed
// unit of the same name.
func (t *TransientUnit) Start() error {
	if len(t.Commands) == 0 {
		return fmt.Errorf("transient unit %s: no command", t.UnitName)
	}
	systemd := systemd1.NewManager(t.Dbus)
	if CheckUnitExist(t.Dbus, t.UnitName) {
		err := systemd.ResetFailedUnit(0, t.UnitName)
		if err != nil {
			return fmt.Errorf("failed to reset failed unit: %v", err)
		}
	}

	_, err := systemd.StartTransientUnit(0, t.UnitName, "replace", t.properties(), nil)
	if err != nil {
		return fmt.Errorf("failed to start transient unit: %v", err)
	}
	return nil
}

// Stop asks systemd to stop the unit. A unit that is not loaded is already
// stopped.
func (t *TransientUnit) Stop() error {
	if !CheckUnitExist(t.Dbus, t.UnitName) {
		return nil
	}
	systemd := systemd1.NewManager(t.Dbus)
	_, err := systemd.StopUnit(0, t.UnitName, "replace")
	if err != nil {
		return fmt.Errorf("failed to stop unit %s: %v", t.UnitName, err)
	}
	return nil
}

func (t *TransientUnit) ActiveState() (string, error) {
	systemd := systemd1.NewManager(t.Dbus)
	unitPath, err := systemd.GetUnit(0, t.UnitName)
	if err != nil {
		// unloaded
		return "inactive", nil
	}
	unit, err := systemd1.NewUnit(t.Dbus, unitPath)
	if err != nil {
		return "", fmt.Errorf("failed to unit: %v", err)
	}
	return unit.Unit().ActiveState().Get(0)
}

func (t *TransientUnit) IsActive() (bool, error) {
	state, err := t.ActiveState()
	if err != nil {
		return false, err
	}
	return state == "active" || state == "activating" || state == "deactivating", nil
}

// WaitInactive polls the unit until it is no longer running or ctx is done.
func (t *TransientUnit) WaitInactive(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		active, err := t.IsActive()
		if err != nil {
			return err
		}
		if !active {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("unit %s still running: %w", t.UnitName, ctx.Err())
		case <-ticker.C:
		}
	}
}
