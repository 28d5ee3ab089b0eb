package fileutil

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystem gives the loader one view over a directory on disk or an embedded tree.
type FileSystem interface {
	// ReadFile reads name relative to the base path, ignoring case on a miss.
	ReadFile(name string) ([]byte, error)
	// Resolve returns the actual path of name, ignoring case on a miss.
	Resolve(name string) (string, error)
	// BasePath returns the root this file system was created with.
	BasePath() string
	// IsEmbedded reports whether the files come from an embedded tree.
	IsEmbedded() bool
}

// RealFS reads from the host file system.
type RealFS struct {
	basePath string
}

// NewRealFS creates a FileSystem rooted at basePath. An empty basePath means
// names are used as given (relative to the working directory, or absolute).
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) ReadFile(name string) ([]byte, error) {
	actualPath, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(actualPath)
}

func (r *RealFS) Resolve(name string) (string, error) {
	p := r.resolvePath(name)
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p, nil
	}
	return FindFileCaseInsensitive(filepath.Dir(p), filepath.Base(p))
}

func (r *RealFS) BasePath() string {
	return r.basePath
}

func (r *RealFS) IsEmbedded() bool {
	return false
}

func (r *RealFS) resolvePath(name string) string {
	if filepath.IsAbs(name) || r.basePath == "" {
		return name
	}
	return filepath.Join(r.basePath, name)
}

// EmbedFS reads from an fs.FS, usually an embed.FS compiled into the binary.
type EmbedFS struct {
	fsys     fs.FS
	basePath string
}

// NewEmbedFS creates a FileSystem over fsys rooted at basePath.
func NewEmbedFS(fsys fs.FS, basePath string) *EmbedFS {
	return &EmbedFS{fsys: fsys, basePath: basePath}
}

func (e *EmbedFS) ReadFile(name string) ([]byte, error) {
	actualPath, err := e.Resolve(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(e.fsys, actualPath)
}

func (e *EmbedFS) Resolve(name string) (string, error) {
	p := e.resolvePath(name)
	if f, err := e.fsys.Open(p); err == nil {
		info, statErr := f.Stat()
		f.Close()
		if statErr == nil && !info.IsDir() {
			return p, nil
		}
	}
	return FindFileCaseInsensitiveFS(e.fsys, path.Dir(p), path.Base(p))
}

func (e *EmbedFS) BasePath() string {
	return e.basePath
}

func (e *EmbedFS) IsEmbedded() bool {
	return true
}

func (e *EmbedFS) resolvePath(name string) string {
	// embedded trees always use forward slashes and no leading separator
	cleanName := strings.TrimLeft(strings.ReplaceAll(name, "\\", "/"), "/")
	if cleanName == "" || cleanName == "." {
		if e.basePath != "" {
			return e.basePath
		}
		return "."
	}
	if e.basePath != "" {
		return e.basePath + "/" + cleanName
	}
	return cleanName
}
