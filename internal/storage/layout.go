// Package storage owns the on-disk upload directory tree.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"media-upload-go/internal/compressor"
)

// ErrOutsideRoot is returned for paths that do not live under the upload root.
var ErrOutsideRoot = errors.New("path outside upload root")

// Layout maps categories to directories under a single upload root.
type Layout struct {
	root      string
	urlPrefix string
	dirs      map[compressor.Category]string
}

// NewLayout builds a layout. dirs maps category names to subdirectories;
// categories missing from dirs use their own name.
func NewLayout(root, urlPrefix string, dirs map[string]string) (*Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	l := &Layout{
		root:      abs,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		dirs:      make(map[compressor.Category]string),
	}
	for _, c := range compressor.Categories() {
		l.dirs[c] = string(c)
	}
	for name, dir := range dirs {
		c, err := compressor.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		l.dirs[c] = filepath.Clean(dir)
	}
	return l, nil
}

// Init creates the root and every category directory. It is called once at
// startup.
func (l *Layout) Init() error {
	for _, c := range compressor.Categories() {
		if err := os.MkdirAll(l.Dir(c), 0755); err != nil {
			return fmt.Errorf("create %s directory: %w", c, err)
		}
	}
	return nil
}

// Root returns the absolute upload root.
func (l *Layout) Root() string {
	return l.root
}

// Dir returns the directory for a category.
func (l *Layout) Dir(c compressor.Category) string {
	return filepath.Join(l.root, l.dirs[c])
}

// StagePath returns a fresh, unique path for an upload in category c,
// keeping a sanitised version of the original extension.
func (l *Layout) StagePath(c compressor.Category, originalName string) string {
	return filepath.Join(l.Dir(c), uuid.NewString()+cleanExt(originalName))
}

// URL returns the public URL of a stored file.
func (l *Layout) URL(p string) (string, error) {
	rel, err := l.rel(p)
	if err != nil {
		return "", err
	}
	return path.Join(l.urlPrefix, filepath.ToSlash(rel)), nil
}

// Remove deletes a stored file. Missing files are not an error.
func (l *Layout) Remove(p string) error {
	if _, err := l.rel(p); err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Layout) rel(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return rel, nil
}

func cleanExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
