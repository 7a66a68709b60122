// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kanshi

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/procfs"
	"golang.org/x/xerrors"

	"github.com/linuxdeepin/displayconfig-daemon/common/systemdunit"
)

const (
	defaultKillGrace = 2 * time.Second
	exitPollInterval = 50 * time.Millisecond
	unitName         = "displayconfig-kanshi.service"
)

type execHelper struct {
	binary string
	name   string
	grace  time.Duration

	uid      uint
	findPids func(name string) ([]uint, error)
	owner    func(pid uint) (uint, error)
	exists   func(pid uint) bool
	signal   func(pid uint, sig syscall.Signal) error
	start    func(cmd *exec.Cmd) error
}

// NewExecHelper controls kanshi as a plain child process of the daemon.
func NewExecHelper(binary string) Helper {
	return newExecHelper(binary)
}

func newExecHelper(binary string) *execHelper {
	return &execHelper{
		binary:   binary,
		name:     filepath.Base(binary),
		grace:    defaultKillGrace,
		uid:      uint(os.Getuid()),
		findPids: findProcesses,
		owner:    processOwner,
		exists:   processExists,
		signal:   signalProcess,
		start:    startDetached,
	}
}

// findProcesses 遍历 /proc 查找名称为 name 的进程
func findProcesses(name string) ([]uint, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	self := uint(os.Getpid())
	var pids []uint
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.ParseUint(entry.Name(), 10, 32)
		if err != nil || uint(pid) == self {
			continue
		}
		p := procfs.Process(pid)
		cmdline, err := p.Cmdline()
		if err != nil || len(cmdline) == 0 {
			// kernel threads and processes that already exited
			continue
		}
		if filepath.Base(cmdline[0]) == name {
			pids = append(pids, uint(pid))
		}
	}
	return pids, nil
}

// processOwner returns the real uid of pid.
func processOwner(pid uint) (uint, error) {
	status, err := procfs.Process(pid).Status()
	if err != nil {
		return 0, err
	}
	uids, err := status.Uids()
	if err != nil {
		return 0, err
	}
	if len(uids) == 0 {
		return 0, xerrors.Errorf("no uid for process %d", pid)
	}
	return uids[0], nil
}

func processExists(pid uint) bool {
	return procfs.Process(pid).Exist()
}

func signalProcess(pid uint, sig syscall.Signal) error {
	err := syscall.Kill(int(pid), sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

func startDetached(cmd *exec.Cmd) error {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	err := cmd.Start()
	if err != nil {
		return err
	}
	go func() {
		err := cmd.Wait()
		if err != nil {
			logger.Warningf("kanshi (pid %d) exited: %v", cmd.Process.Pid, err)
		} else {
			logger.Debugf("kanshi (pid %d) exited", cmd.Process.Pid)
		}
	}()
	return nil
}

// ownPids lists the instances started by our user. Other users' kanshi
// are never signalled.
func (h *execHelper) ownPids() ([]uint, error) {
	pids, err := h.findPids(h.name)
	if err != nil {
		return nil, err
	}
	var result []uint
	for _, pid := range pids {
		uid, err := h.owner(pid)
		if err != nil {
			// exited meanwhile
			continue
		}
		if uid != h.uid {
			logger.Debugf("skip process %d of uid %d", pid, uid)
			continue
		}
		result = append(result, pid)
	}
	return result, nil
}

func (h *execHelper) IsRunning() (bool, error) {
	pids, err := h.ownPids()
	if err != nil {
		return false, err
	}
	return len(pids) > 0, nil
}

func (h *execHelper) Stop(ctx context.Context) error {
	pids, err := h.ownPids()
	if err != nil {
		return err
	}
	for _, pid := range pids {
		logger.Debug("kill process", pid)
		err = h.signal(pid, syscall.SIGTERM)
		if err != nil {
			return xerrors.Errorf("failed to send signal TERM to process %d: %w", pid, err)
		}
	}

	graceTimer := time.NewTimer(h.grace)
	defer graceTimer.Stop()
	ticker := time.NewTicker(exitPollInterval)
	defer ticker.Stop()
	for {
		pids = h.alive(pids)
		if len(pids) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return xerrors.Errorf("processes %v did not exit: %w", pids, ctx.Err())
		case <-graceTimer.C:
			for _, pid := range pids {
				logger.Warningf("process %d ignored TERM, send KILL", pid)
				err = h.signal(pid, syscall.SIGKILL)
				if err != nil {
					return xerrors.Errorf("failed to send signal KILL to process %d: %w", pid, err)
				}
			}
		case <-ticker.C:
		}
	}
}

func (h *execHelper) alive(pids []uint) []uint {
	var result []uint
	for _, pid := range pids {
		if h.exists(pid) {
			result = append(result, pid)
		}
	}
	return result
}

func (h *execHelper) Start(configFile string) error {
	// #nosec G204
	cmd := exec.Command(h.binary, "-c", configFile)
	return h.start(cmd)
}

// unitControl is the part of a transient systemd unit the helper drives.
type unitControl interface {
	Start(commands []string) error
	Stop() error
	IsActive() (bool, error)
	WaitInactive(ctx context.Context) error
}

type systemdUnit struct {
	*systemdunit.TransientUnit
}

func (u systemdUnit) Start(commands []string) error {
	u.Commands = commands
	return u.TransientUnit.Start()
}

type unitHelper struct {
	unit  unitControl
	procs *execHelper
}

// NewUnitHelper runs kanshi in a transient systemd user unit. Instances
// started outside the unit are stopped too.
func NewUnitHelper(conn *dbus.Conn, binary string) (Helper, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, xerrors.Errorf("look up %s: %w", binary, err)
	}
	unit := systemdUnit{&systemdunit.TransientUnit{
		Dbus:        conn,
		UnitName:    unitName,
		Description: "kanshi output profiles",
		Environment: waylandEnv(),
	}}
	return newUnitHelper(unit, newExecHelper(path)), nil
}

func newUnitHelper(unit unitControl, procs *execHelper) *unitHelper {
	return &unitHelper{unit: unit, procs: procs}
}

func waylandEnv() []string {
	var env []string
	for _, key := range []string{"WAYLAND_DISPLAY", "XDG_RUNTIME_DIR", "SWAYSOCK"} {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

func (h *unitHelper) IsRunning() (bool, error) {
	active, err := h.unit.IsActive()
	if err != nil {
		return false, err
	}
	if active {
		return true, nil
	}
	return h.procs.IsRunning()
}

func (h *unitHelper) Stop(ctx context.Context) error {
	err := h.unit.Stop()
	if err != nil {
		return err
	}
	err = h.unit.WaitInactive(ctx)
	if err != nil {
		return err
	}
	return h.procs.Stop(ctx)
}

func (h *unitHelper) Start(configFile string) error {
	return h.unit.Start([]string{h.procs.binary, "-c", configFile})
}
