// Package filesystem stores uploaded blobs as files under a root directory.
//
// Pointers have the form "<uuid>/<name>" and are resolved relative to the
// root. Pointers that would escape the root are rejected.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ObjectStore = (*Store)(nil)

// Store is a directory-backed object store.
type Store struct {
	root string
}

// NewStore creates the root directory if needed and returns a store on it.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("create object directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory blobs are written to.
func (s *Store) Root() string {
	return s.root
}

// Put streams r to a new file and returns its pointer.
func (s *Store) Put(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	base := sanitiseName(name)
	pointer := uuid.New().String() + "/" + base

	dir := filepath.Join(s.root, filepath.Dir(filepath.FromSlash(pointer)))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", 0, fmt.Errorf("create blob directory: %w", err)
	}

	path := filepath.Join(dir, base)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", 0, fmt.Errorf("create blob: %w", err)
	}

	size, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.RemoveAll(dir)
		return "", 0, fmt.Errorf("write blob: %w", errors.Join(copyErr, closeErr))
	}

	return pointer, size, nil
}

// Get reads the blob behind pointer.
func (s *Store) Get(ctx context.Context, pointer string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.resolve(pointer)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Delete removes the blob and its directory.
func (s *Store) Delete(ctx context.Context, pointer string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolve(pointer)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(filepath.Dir(path)); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// resolve maps a pointer to a path, refusing anything outside the root.
func (s *Store) resolve(pointer string) (string, error) {
	dir, name, ok := strings.Cut(pointer, "/")
	if !ok || uuid.Validate(dir) != nil || name == "" || name != sanitiseName(name) {
		return "", fmt.Errorf("%w: bad storage pointer %q", domain.ErrInvalidInput, pointer)
	}
	return filepath.Join(s.root, dir, name), nil
}

// sanitiseName reduces a filename to a safe single path element.
func sanitiseName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '/', r == ':':
			return '_'
		default:
			return r
		}
	}, name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "upload"
	}
	return name
}
