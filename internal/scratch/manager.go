// Package scratch manages request-scoped temp files in a shared scratch
// directory. Path uniqueness under concurrent requests comes from a random
// token per acquisition; no two requests ever touch the same path.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/resumia/cv-extractor/internal/domain"
	"github.com/resumia/cv-extractor/internal/observability"
)

// Resource is a uniquely named scratch file whose lifetime is bounded by one
// request. It must be released exactly once; a second Release is a no-op.
type Resource struct {
	Path string

	mu       sync.Mutex
	released bool
}

// Dir owns a scratch directory and hands out request-scoped resources.
type Dir struct {
	root   string
	logger *observability.Logger
}

// NewDir creates a manager over root. An empty root falls back to the system
// temp directory.
func NewDir(root string, logger *observability.Logger) (*Dir, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, domain.IOError(fmt.Sprintf("create scratch directory %s", root), err)
	}
	return &Dir{
		root:   root,
		logger: logger.WithComponent("scratch"),
	}, nil
}

// Root returns the scratch directory path.
func (d *Dir) Root() string {
	return d.root
}

// Acquire writes content to a new uniquely named file and returns the
// resource. Fails with an IOError when the underlying storage cannot be
// written.
func (d *Dir) Acquire(content []byte, suggestedName string) (*Resource, error) {
	name := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeName(suggestedName))
	path := filepath.Join(d.root, name)

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return nil, domain.IOError("write scratch file", err)
	}

	d.logger.Debug().Str("path", path).Int("bytes", len(content)).Msg("Scratch file written")

	return &Resource{Path: path}, nil
}

// Release removes the resource from disk. It never fails: deletion errors are
// logged and swallowed since they are not fatal to the caller. Safe to call
// more than once.
func (d *Dir) Release(res *Resource) {
	if res == nil {
		return
	}

	res.mu.Lock()
	defer res.mu.Unlock()
	if res.released {
		return
	}
	res.released = true

	if err := os.Remove(res.Path); err != nil && !os.IsNotExist(err) {
		d.logger.Warn().Str("path", res.Path).Err(err).Msg("Failed to remove scratch file")
		return
	}

	d.logger.Debug().Str("path", res.Path).Msg("Scratch file removed")
}

// sanitizeName reduces a client-supplied filename to a safe basename so a
// crafted name cannot escape the scratch directory.
func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
