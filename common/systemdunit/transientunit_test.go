// SPDX-FileCopyrightText: 2025 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package systemdunit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransientUnitProperties(t *testing.T) {
	unit := TransientUnit{
		Commands:    []string{"/usr/bin/kanshi", "-c", "/tmp/kanshi/config"},
		UnitName:    "kanshi.service",
		Description: "kanshi",
		Environment: []string{"WAYLAND_DISPLAY=wayland-1"},
	}
	props := unit.properties()
	names := make([]string, 0, len(props))
	for _, p := range props {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Type", "Description", "CollectMode", "Environment", "ExecStart"}, names)

	exec, ok := props[len(props)-1].Value.Value().([]execStart)
	require.True(t, ok)
	require.Len(t, exec, 1)
	assert.Equal(t, "/usr/bin/kanshi", exec[0].Path)
	assert.Equal(t, unit.Commands, exec[0].Args)
}

func TestTransientUnitNoCommand(t *testing.T) {
	unit := TransientUnit{UnitName: "kanshi.service"}
	assert.Error(t, unit.Start())
}
