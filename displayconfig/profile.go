// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displayconfig

import (
	"github.com/linuxdeepin/displayconfig-daemon/kanshi"
)

// profileOf describes the layout of snap for kanshi. Every connected
// monitor gets a rule, disabled ones a disable rule.
func profileOf(snap *Snapshot) *kanshi.Profile {
	profile := &kanshi.Profile{
		Outputs: make([]kanshi.Output, 0, len(snap.Monitors)),
	}
	for idx := range snap.Monitors {
		monitor := &snap.Monitors[idx]
		if !monitor.Connected {
			continue
		}
		out := kanshi.Output{
			Connector: monitor.Connector,
			Make:      monitor.Vendor,
			Model:     monitor.Product,
			Serial:    monitor.Serial,
		}
		lm, modeID := snap.LogicalMonitorOf(monitor.Connector)
		if lm != nil {
			if mode := monitor.Mode(modeID); mode != nil {
				out.Enabled = true
				out.Width = mode.Width
				out.Height = mode.Height
				out.Refresh = mode.RefreshRate
				out.X = lm.X
				out.Y = lm.Y
				out.Scale = lm.Scale
				out.Transform = lm.Transform.String()
			}
		}
		profile.Outputs = append(profile.Outputs, out)
	}
	return profile
}
