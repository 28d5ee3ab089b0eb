package fileutil

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Loader reads module bytes by trying each FileSystem in order.
type Loader struct {
	systems []FileSystem
	log     *slog.Logger
}

// NewLoader creates a Loader that searches systems in the given order.
func NewLoader(log *slog.Logger, systems ...FileSystem) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{systems: systems, log: log}
}

// NewSearchPathLoader builds a Loader from a list of directories. The working
// directory is always searched first so absolute and relative paths work as given.
func NewSearchPathLoader(log *slog.Logger, searchPaths []string, extra ...FileSystem) *Loader {
	systems := []FileSystem{NewRealFS("")}
	for _, p := range searchPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		systems = append(systems, NewRealFS(p))
	}
	systems = append(systems, extra...)
	return NewLoader(log, systems...)
}

// ReadFile returns the contents of the first match for name.
// ErrResourceNotFound is returned when no file system has it.
func (l *Loader) ReadFile(name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrResourceNotFound)
	}

	var lastErr error
	for _, fsys := range l.systems {
		if fsys.IsEmbedded() && filepath.IsAbs(name) {
			continue
		}
		data, err := fsys.ReadFile(name)
		if err == nil {
			l.log.Debug("Resource resolved", "name", name, "base", fsys.BasePath(), "embedded", fsys.IsEmbedded())
			return data, nil
		}
		lastErr = err
	}

	if lastErr != nil && !errors.Is(lastErr, ErrResourceNotFound) {
		l.log.Debug("Resource lookup failed", "name", name, "error", lastErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
}

// Len returns the number of file systems searched.
func (l *Loader) Len() int {
	return len(l.systems)
}
