// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kanshi

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

const (
	placeholderName    = "placeholder"
	placeholderProfile = "profile placeholder {\n\toutput * enable\n}\n"

	// first line of every include config written here
	configHeader = "# generated by displayconfig-daemon, do not edit\n"
)

var (
	// ErrForeignConfig is returned instead of replacing a config file that
	// was not generated by the writer.
	ErrForeignConfig = errors.New("config file not generated by displayconfig-daemon")
	ErrEmptyProfile  = errors.New("profile has no outputs")
)

// Writer owns the profiles directory and the include config.
type Writer struct {
	paths Paths
	mu    sync.Mutex
}

func NewWriter(paths Paths) *Writer {
	return &Writer{paths: paths}
}

func (w *Writer) Paths() Paths {
	return w.paths
}

// Bootstrap creates the kanshi directories, a placeholder profile when
// there is no profile yet, and the include config. It is idempotent.
func (w *Writer) Bootstrap() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := os.MkdirAll(w.paths.Profiles, 0755)
	if err != nil {
		return &IOError{Op: "mkdir", Path: w.paths.Profiles, Err: err}
	}
	names, err := w.profileNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		filename := filepath.Join(w.paths.Profiles, placeholderName)
		logger.Info("create placeholder profile", filename)
		_, err = writeFileIfChanged(filename, []byte(placeholderProfile))
		if err != nil {
			return err
		}
	}
	_, err = w.writeIncludeConfig()
	return err
}

// Write replaces the file of the profile key with the rendered profile and
// regenerates the include config. changed is false when the file already
// had the same content.
func (w *Writer) Write(p *Profile) (filename string, changed bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := p.Key()
	if len(p.Outputs) == 0 || key == "" {
		return "", false, &IOError{Op: "write", Path: w.paths.Profiles, Err: ErrEmptyProfile}
	}
	filename = filepath.Join(w.paths.Profiles, key)
	err = os.MkdirAll(w.paths.Profiles, 0755)
	if err != nil {
		return filename, false, &IOError{Op: "mkdir", Path: w.paths.Profiles, Err: err}
	}
	changed, err = writeFileIfChanged(filename, p.Render())
	if err != nil {
		return filename, false, err
	}
	if changed {
		logger.Info("wrote profile", filename)
	} else {
		logger.Debug("profile unchanged", filename)
	}
	if key != placeholderName {
		err = w.removePlaceholder()
		if err != nil {
			return filename, changed, err
		}
	}

	_, err = w.writeIncludeConfig()
	if err != nil {
		return filename, changed, err
	}
	return filename, changed, nil
}

// RegenerateConfig rewrites the include config from the profiles directory.
func (w *Writer) RegenerateConfig() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeIncludeConfig()
}

// removePlaceholder drops the placeholder once a real profile exists, it
// would match any single output setup.
func (w *Writer) removePlaceholder() error {
	filename := filepath.Join(w.paths.Profiles, placeholderName)
	err := os.Remove(filename)
	if err == nil {
		logger.Info("removed placeholder profile", filename)
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return &IOError{Op: "remove", Path: filename, Err: err}
}

func (w *Writer) writeIncludeConfig() (bool, error) {
	err := w.checkConfigOwned()
	if err != nil {
		return false, err
	}
	names, err := w.profileNames()
	if err != nil {
		return false, err
	}
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	for _, name := range names {
		abs, err := filepath.Abs(filepath.Join(w.paths.Profiles, name))
		if err != nil {
			return false, &IOError{Op: "abs", Path: name, Err: err}
		}
		buf.WriteString("include " + abs + "\n")
	}
	return writeFileIfChanged(w.paths.Config, buf.Bytes())
}

// checkConfigOwned fails when the config file exists, is not empty and
// lacks the header.
func (w *Writer) checkConfigOwned() error {
	// #nosec G304
	content, err := os.ReadFile(w.paths.Config)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &IOError{Op: "read", Path: w.paths.Config, Err: err}
	}
	if len(bytes.TrimSpace(content)) == 0 || bytes.HasPrefix(content, []byte(configHeader)) {
		return nil
	}
	logger.Warning("refuse to overwrite config not generated by us:", w.paths.Config)
	return &IOError{Op: "write", Path: w.paths.Config, Err: ErrForeignConfig}
}

// profileNames lists the profile files, sorted, skipping dot and temporary
// files.
func (w *Writer) profileNames() ([]string, error) {
	entries, err := os.ReadDir(w.paths.Profiles)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &IOError{Op: "readdir", Path: w.paths.Profiles, Err: err}
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || isIgnoredName(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func isIgnoredName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".swp")
}

func writeFileIfChanged(filename string, data []byte) (bool, error) {
	// #nosec G304
	old, err := os.ReadFile(filename)
	if err == nil && bytes.Equal(old, data) {
		return false, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, &IOError{Op: "read", Path: filename, Err: err}
	}
	err = renameio.WriteFile(filename, data, 0644)
	if err != nil {
		return false, &IOError{Op: "write", Path: filename, Err: err}
	}
	return true, nil
}
