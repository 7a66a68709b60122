// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"

	"github.com/linuxdeepin/displayconfig-daemon/kanshi"
	"github.com/linuxdeepin/displayconfig-daemon/outputs"
)

const (
	errNameInvalidArgs = "org.freedesktop.DBus.Error.InvalidArgs"
	errNameIOError     = "org.freedesktop.DBus.Error.IOError"
	errNameFailed      = "org.freedesktop.DBus.Error.Failed"
)

// StaleSerialError means the caller configured against an outdated state.
type StaleSerialError struct {
	Current   uint32
	Requested uint32
}

func (e *StaleSerialError) Error() string {
	return fmt.Sprintf("stale serial %d, current serial is %d", e.Requested, e.Current)
}

// InvalidAssignmentError means the requested layout does not fit the
// current monitors.
type InvalidAssignmentError struct {
	Connector string
	Reason    string
}

func (e *InvalidAssignmentError) Error() string {
	if e.Connector == "" {
		return "invalid monitors config: " + e.Reason
	}
	return fmt.Sprintf("invalid monitors config for %s: %s", e.Connector, e.Reason)
}

// MalformedRequestError means the request itself is not well-formed.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return "malformed monitors config: " + e.Reason
}

var errNoSnapshot = errors.New("monitor information is not available yet")

func toBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	var (
		staleErr     *StaleSerialError
		invalidErr   *InvalidAssignmentError
		malformedErr *MalformedRequestError
		ioErr        *kanshi.IOError
		processErr   *kanshi.ProcessError
		hardwareErr  *outputs.HardwareQueryError
	)
	var name string
	switch {
	case errors.As(err, &staleErr), errors.As(err, &invalidErr), errors.As(err, &malformedErr):
		name = errNameInvalidArgs
	case errors.As(err, &ioErr):
		name = errNameIOError
	case errors.As(err, &processErr), errors.As(err, &hardwareErr):
		name = errNameFailed
	default:
		return dbusutil.ToError(err)
	}
	return &dbus.Error{
		Name: name,
		Body: []interface{}{err.Error()},
	}
}
