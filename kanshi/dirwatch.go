// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kanshi

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/xerrors"
)

const dirWatchDelay = 200 * time.Millisecond

// DirWatcher keeps the include config in sync with profile files added or
// removed by hand.
type DirWatcher struct {
	writer *Writer
	// called after the include config changed
	onChange func()
}

func NewDirWatcher(writer *Writer, onChange func()) *DirWatcher {
	return &DirWatcher{writer: writer, onChange: onChange}
}

func (w *DirWatcher) String() string {
	return "kanshi-dir-watcher"
}

// Serve watches the profiles directory until ctx is done.
func (w *DirWatcher) Serve(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return xerrors.Errorf("create fs watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	dir := w.writer.Paths().Profiles
	err = watcher.Add(dir)
	if err != nil {
		return xerrors.Errorf("watch %s: %w", dir, err)
	}
	logger.Debug("watch profiles dir", dir)

	delay := time.NewTimer(dirWatchDelay)
	if !delay.Stop() {
		<-delay.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return xerrors.New("fs watcher closed")
			}
			if !isProfileEvent(ev) {
				continue
			}
			logger.Debug("profiles dir event:", ev)
			delay.Reset(dirWatchDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return xerrors.New("fs watcher closed")
			}
			logger.Warning(err)
		case <-delay.C:
			w.regenerate()
		}
	}
}

func isProfileEvent(ev fsnotify.Event) bool {
	if isIgnoredName(filepath.Base(ev.Name)) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

func (w *DirWatcher) regenerate() {
	changed, err := w.writer.RegenerateConfig()
	if err != nil {
		logger.Warning(err)
		return
	}
	if changed {
		logger.Info("include config regenerated")
		if w.onChange != nil {
			w.onChange()
		}
	}
}
