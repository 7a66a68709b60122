// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package displayconfig serves org.gnome.Mutter.DisplayConfig on top of a
// wlroots compositor, applying layouts through kanshi profiles.
package displayconfig

import (
	"context"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/thejerf/suture/v4"
	"golang.org/x/xerrors"

	"github.com/linuxdeepin/displayconfig-daemon/common/config"
	"github.com/linuxdeepin/displayconfig-daemon/kanshi"
	"github.com/linuxdeepin/displayconfig-daemon/outputs"
)

type Daemon struct {
	service *dbusutil.Service
	manager *Manager
	watcher *Watcher
	sleep   *sleepMonitor
	cancel  context.CancelFunc
}

// Start reads the monitors, exports the manager and starts watching.
// Failing to reach the compositor or to own the bus name is fatal.
func Start(service *dbusutil.Service, cfg *config.Config) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())
	d, err := start(ctx, service, cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	d.cancel = cancel
	return d, nil
}

func start(ctx context.Context, service *dbusutil.Service, cfg *config.Config) (*Daemon, error) {
	reader, err := outputs.NewReader(ctx, cfg.Backend, cfg.QueryTimeout)
	if err != nil {
		return nil, err
	}

	paths := kanshi.NewPaths(cfg.KanshiDir)
	writer := kanshi.NewWriter(paths)
	err = writer.Bootstrap()
	if err != nil {
		// applying reports its own IOError later
		logger.Warning("failed to prepare kanshi dir:", err)
	}

	var helper kanshi.Helper
	switch cfg.Launcher {
	case config.LauncherSystemd:
		helper, err = kanshi.NewUnitHelper(service.Conn(), cfg.KanshiBinary)
		if err != nil {
			_ = reader.Close()
			return nil, err
		}
	default:
		helper = kanshi.NewExecHelper(cfg.KanshiBinary)
	}
	supervisor := kanshi.NewSupervisor(helper, paths.Config, cfg.RestartTimeout)

	m := newManager(service, NewState(), reader, writer, supervisor)
	err = m.refresh(ctx)
	if err != nil {
		_ = reader.Close()
		return nil, xerrors.Errorf("initial monitors query: %w", err)
	}

	err = service.Export(dbusPath, m)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	err = service.RequestName(dbusServiceName)
	if err != nil {
		_ = service.StopExport(m)
		_ = reader.Close()
		return nil, xerrors.Errorf("request name %s: %w", dbusServiceName, err)
	}

	d := &Daemon{
		service: service,
		manager: m,
		watcher: NewWatcher(m, cfg.PollInterval),
	}

	tree := suture.New("displayconfig", suture.Spec{
		EventHook: func(ev suture.Event) {
			logger.Warning(ev)
		},
	})
	tree.Add(d.watcher)
	tree.Add(kanshi.NewDirWatcher(writer, m.restartHelper))
	tree.ServeBackground(ctx)

	d.sleep, err = newSleepMonitor(connectLogin1, d.watcher.Trigger)
	if err != nil {
		logger.Warning("failed to watch sleep:", err)
	}

	logger.Info("serving", dbusServiceName)
	return d, nil
}

func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.sleep != nil {
		d.sleep.destroy()
		d.sleep = nil
	}
	err := d.service.StopExport(d.manager)
	if err != nil {
		logger.Warning("stop export failed:", err)
	}
	err = d.manager.reader.Close()
	if err != nil {
		logger.Warning(err)
	}
}
