// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kanshi

import (
	"context"
	"sync"
	"time"
)

const defaultRestartTimeout = 5 * time.Second

// Helper controls the kanshi process.
type Helper interface {
	IsRunning() (bool, error)
	// Stop terminates every running instance and waits for them to exit.
	Stop(ctx context.Context) error
	// Start launches a detached instance reading configFile.
	Start(configFile string) error
}

// Supervisor restarts kanshi after profiles change. Restarts never overlap.
type Supervisor struct {
	helper     Helper
	configFile string
	timeout    time.Duration

	mu sync.Mutex
}

func NewSupervisor(helper Helper, configFile string, timeout time.Duration) *Supervisor {
	if timeout <= 0 {
		timeout = defaultRestartTimeout
	}
	return &Supervisor{
		helper:     helper,
		configFile: configFile,
		timeout:    timeout,
	}
}

// EnsureRestarted stops any running kanshi and starts a new one. Having no
// instance to stop is not an error.
func (s *Supervisor) EnsureRestarted(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	running, err := s.helper.IsRunning()
	if err != nil {
		return &ProcessError{Op: "find", Err: err}
	}
	if running {
		logger.Debug("stop kanshi")
		err = s.helper.Stop(ctx)
		if err != nil {
			return &ProcessError{Op: "stop", Err: err}
		}
	}

	err = ctx.Err()
	if err != nil {
		return &ProcessError{Op: "start", Err: err}
	}
	err = s.helper.Start(s.configFile)
	if err != nil {
		return &ProcessError{Op: "start", Err: err}
	}
	logger.Infof("kanshi restarted with %s", s.configFile)
	return nil
}
