// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the optional daemon configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxdeepin/go-lib/xdg/basedir"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

const (
	EnvBackend   = "DISPLAYCONFIG_BACKEND"
	EnvKanshiDir = "DISPLAYCONFIG_KANSHI_DIR"
)

const (
	LauncherExec    = "exec"
	LauncherSystemd = "systemd"
)

const (
	defaultBackend        = "auto"
	defaultPollInterval   = 700 * time.Millisecond
	defaultQueryTimeout   = 3 * time.Second
	defaultRestartTimeout = 5 * time.Second
	defaultKanshiBinary   = "kanshi"
)

var knownBackends = []string{"auto", "sway", "wlr-randr"}

type Config struct {
	Backend        string        `yaml:"backend"`
	PollInterval   time.Duration `yaml:"poll-interval"`
	QueryTimeout   time.Duration `yaml:"query-timeout"`
	RestartTimeout time.Duration `yaml:"restart-timeout"`
	// empty means $XDG_CONFIG_HOME/displayconfig-daemon/kanshi
	KanshiDir    string `yaml:"kanshi-dir"`
	KanshiBinary string `yaml:"kanshi-binary"`
	Launcher     string `yaml:"launcher"`
}

func Default() *Config {
	return &Config{
		Backend:        defaultBackend,
		PollInterval:   defaultPollInterval,
		QueryTimeout:   defaultQueryTimeout,
		RestartTimeout: defaultRestartTimeout,
		KanshiBinary:   defaultKanshiBinary,
		Launcher:       LauncherExec,
	}
}

// DefaultFile 返回 ~/.config/displayconfig-daemon/config.yaml
func DefaultFile() string {
	return filepath.Join(basedir.GetUserConfigDir(), "displayconfig-daemon", "config.yaml")
}

// Load reads filename on top of the defaults, then applies the environment
// overrides. A missing file is not an error.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		filename = DefaultFile()
	}

	// #nosec G304
	content, err := os.ReadFile(filename)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, xerrors.Errorf("read config %s: %w", filename, err)
	}
	if len(content) > 0 {
		err = yaml.Unmarshal(content, cfg)
		if err != nil {
			return nil, xerrors.Errorf("parse config %s: %w", filename, err)
		}
	}

	cfg.applyEnv()
	err = cfg.Validate()
	if err != nil {
		return nil, xerrors.Errorf("config %s: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBackend)); v != "" {
		c.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvKanshiDir)); v != "" {
		c.KanshiDir = v
	}
}

func (c *Config) Validate() error {
	if c.Backend == "" {
		c.Backend = defaultBackend
	}
	if !isKnownBackend(c.Backend) {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive, got %v", c.PollInterval)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query-timeout must be positive, got %v", c.QueryTimeout)
	}
	if c.RestartTimeout <= 0 {
		return fmt.Errorf("restart-timeout must be positive, got %v", c.RestartTimeout)
	}
	if c.KanshiBinary == "" {
		c.KanshiBinary = defaultKanshiBinary
	}
	switch c.Launcher {
	case "":
		c.Launcher = LauncherExec
	case LauncherExec, LauncherSystemd:
	default:
		return fmt.Errorf("unknown launcher %q", c.Launcher)
	}
	if c.KanshiDir != "" && !filepath.IsAbs(c.KanshiDir) {
		return fmt.Errorf("kanshi-dir must be absolute, got %q", c.KanshiDir)
	}
	return nil
}

func isKnownBackend(name string) bool {
	for _, b := range knownBackends {
		if b == name {
			return true
		}
	}
	return false
}
