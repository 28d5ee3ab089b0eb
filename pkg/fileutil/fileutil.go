// Package fileutil resolves module resources on real and embedded file systems.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrResourceNotFound is returned when a name cannot be resolved on any search path.
var ErrResourceNotFound = errors.New("resource not found")

// FindFileCaseInsensitive searches dir for filename ignoring case.
// Old tracker archives ship with inconsistent casing ("SONG.MID" vs "song.mid"),
// so every lookup goes through here after the exact path misses.
//
// Example:
//
//	path, err := FindFileCaseInsensitive("/music", "Intro.MID")
//	// finds "intro.mid", "INTRO.MID", ...
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("%w: %s (searched in %s)", ErrResourceNotFound, filename, dir)
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive for an fs.FS.
// The returned path uses forward slashes.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			if dir == "." || dir == "" {
				return entry.Name(), nil
			}
			return dir + "/" + entry.Name(), nil
		}
	}

	return "", fmt.Errorf("%w: %s (searched in %s)", ErrResourceNotFound, filename, dir)
}
