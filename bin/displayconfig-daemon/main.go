// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/gettext"
	"github.com/linuxdeepin/go-lib/log"
	"github.com/linuxdeepin/go-lib/utils"
	"github.com/spf13/cobra"

	"github.com/linuxdeepin/displayconfig-daemon/common/config"
	"github.com/linuxdeepin/displayconfig-daemon/displayconfig"
	"github.com/linuxdeepin/displayconfig-daemon/kanshi"
	"github.com/linuxdeepin/displayconfig-daemon/outputs"
)

var logger = log.NewLogger("daemon/displayconfig-daemon")

const textDomain = "displayconfig-daemon"

var _options struct {
	verbose    bool
	logLevel   string
	configFile string
}

func toLogLevel(name string) (log.Priority, error) {
	name = strings.ToLower(name)
	logLevel := log.LevelInfo
	var err error
	switch name {
	case "":
		logLevel = log.LevelInfo
	case "error":
		logLevel = log.LevelError
	case "warn":
		logLevel = log.LevelWarning
	case "info":
		logLevel = log.LevelInfo
	case "debug":
		logLevel = log.LevelDebug
	case "no":
		logLevel = log.LevelDisable
	default:
		err = fmt.Errorf("%s is not support", name)
	}

	return logLevel, err
}

func setLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
	outputs.SetLogLevel(level)
	kanshi.SetLogLevel(level)
	displayconfig.SetLogLevel(level)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "displayconfig-daemon",
		Short: "Mutter DisplayConfig service for wlroots compositors",
		Long: `displayconfig-daemon serves org.gnome.Mutter.DisplayConfig on the session bus
for sway and other wlroots compositors. Layout changes are written as kanshi
profiles and applied by restarting kanshi.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	const logLevelUsage = "Set log level, possible value is error/warn/info/debug/no, info is default"
	cmd.Flags().BoolVarP(&_options.verbose, "verbose", "v", false, "Show much more message, shorthand for --loglevel debug")
	cmd.Flags().StringVarP(&_options.logLevel, "loglevel", "l", "", logLevelUsage)
	cmd.Flags().StringVarP(&_options.configFile, "config", "c", "", "Config file, default "+config.DefaultFile())
	return cmd
}

func initI18n() {
	gettext.InitI18n()
	gettext.BindTextdomainCodeset(textDomain, "UTF-8")
	gettext.Textdomain(textDomain)
}

func run() error {
	if _options.verbose {
		_options.logLevel = "debug"
	}
	logLevel, err := toLogLevel(_options.logLevel)
	if err != nil {
		return err
	}
	if _options.logLevel == "" &&
		(utils.IsEnvExists(log.DebugLevelEnv) || utils.IsEnvExists(log.DebugMatchEnv)) {
		logger.Info("Log level is none and debug env exists, so do not call setLogLevel")
	} else {
		setLogLevel(logLevel)
	}
	initI18n()

	cfg, err := config.Load(_options.configFile)
	if err != nil {
		return err
	}
	logger.Debugf("config: %+v", *cfg)

	service, err := dbusutil.NewSessionService()
	if err != nil {
		return fmt.Errorf("failed to connect session bus: %w", err)
	}

	daemon, err := displayconfig.Start(service, cfg)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal", sig)
		service.Quit()
	}()

	service.Wait()
	daemon.Stop()
	logger.Info("exit")
	return nil
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		logger.Warning(err)
		os.Exit(1)
	}
}
