// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package kanshi writes kanshi profiles and keeps the kanshi process
// running with them.
package kanshi

import (
	"fmt"
	"path/filepath"

	"github.com/linuxdeepin/go-lib/log"
	"github.com/linuxdeepin/go-lib/xdg/basedir"
)

var logger = log.NewLogger("daemon/kanshi")

func SetLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
}

const (
	profilesDirName = "profiles"
	configFileName  = "config"
)

// Paths is the on-disk layout shared with kanshi.
type Paths struct {
	Base     string
	Profiles string
	Config   string
}

// DefaultBase is owned by the daemon. kanshi's own config dir is left to
// the user.
func DefaultBase() string {
	return filepath.Join(basedir.GetUserConfigDir(), "displayconfig-daemon", "kanshi")
}

// NewPaths returns the layout under base, or under DefaultBase when base
// is empty.
func NewPaths(base string) Paths {
	if base == "" {
		base = DefaultBase()
	}
	return Paths{
		Base:     base,
		Profiles: filepath.Join(base, profilesDirName),
		Config:   filepath.Join(base, configFileName),
	}
}

// IOError reports a failed filesystem operation on the kanshi directory.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ProcessError reports that kanshi could not be stopped or started.
type ProcessError struct {
	Op  string
	Err error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s kanshi: %v", e.Op, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
