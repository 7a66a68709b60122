// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kanshi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_isProfileEvent(t *testing.T) {
	assert.True(t, isProfileEvent(fsnotify.Event{Name: "/p/eDP-1", Op: fsnotify.Create}))
	assert.True(t, isProfileEvent(fsnotify.Event{Name: "/p/eDP-1", Op: fsnotify.Remove}))
	assert.False(t, isProfileEvent(fsnotify.Event{Name: "/p/eDP-1", Op: fsnotify.Chmod}))
	assert.False(t, isProfileEvent(fsnotify.Event{Name: "/p/.eDP-1123", Op: fsnotify.Create}))
}

func TestDirWatcher(t *testing.T) {
	paths := NewPaths(t.TempDir())
	w := NewWriter(paths)
	require.NoError(t, w.Bootstrap())

	changed := make(chan struct{}, 1)
	dw := NewDirWatcher(w, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- dw.Serve(ctx)
	}()
	// let the watcher register the directory
	time.Sleep(100 * time.Millisecond)

	err := os.WriteFile(filepath.Join(paths.Profiles, "manual"), []byte("profile manual {}\n"), 0644)
	require.NoError(t, err)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("include config not regenerated")
	}
	content, err := os.ReadFile(paths.Config)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), filepath.Join(paths.Profiles, "manual")))

	cancel()
	assert.NoError(t, <-done)
}
