package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-upload-go/internal/compressor"
)

func newTestLayout(t *testing.T) *Layout {
	t.Helper()
	l, err := NewLayout(t.TempDir(), "uploads/", map[string]string{"avatar": "avatars", "post-image": "posts"})
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if err := l.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return l
}

func TestInitCreatesCategoryDirs(t *testing.T) {
	l := newTestLayout(t)
	for _, c := range compressor.Categories() {
		info, err := os.Stat(l.Dir(c))
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory for %s: %v", c, err)
		}
	}
	if filepath.Base(l.Dir(compressor.CategoryEventImage)) != "event-image" {
		t.Errorf("expected fallback dir name, got %s", l.Dir(compressor.CategoryEventImage))
	}
}

func TestStagePathIsUniqueAndSanitised(t *testing.T) {
	l := newTestLayout(t)
	a := l.StagePath(compressor.CategoryAvatar, "Me.PNG")
	b := l.StagePath(compressor.CategoryAvatar, "Me.PNG")
	if a == b {
		t.Fatal("expected unique staged paths")
	}
	if filepath.Dir(a) != l.Dir(compressor.CategoryAvatar) {
		t.Errorf("staged in wrong dir: %s", a)
	}
	if filepath.Ext(a) != ".png" {
		t.Errorf("expected lowercased .png, got %s", a)
	}
	for _, name := range []string{"../../etc/passwd", "x.p$p", "noext", "a.toolongext"} {
		p := l.StagePath(compressor.CategoryGeneric, name)
		if filepath.Ext(p) != "" || filepath.Dir(p) != l.Dir(compressor.CategoryGeneric) {
			t.Errorf("StagePath(%q) = %s", name, p)
		}
	}
}

func TestURL(t *testing.T) {
	l := newTestLayout(t)
	p := filepath.Join(l.Dir(compressor.CategoryPostImage), "abc.jpg")
	url, err := l.URL(p)
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if url != "/uploads/posts/abc.jpg" {
		t.Errorf("expected /uploads/posts/abc.jpg, got %s", url)
	}
	if _, err := l.URL("/etc/passwd"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("expected ErrOutsideRoot, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	l := newTestLayout(t)
	p := filepath.Join(l.Dir(compressor.CategoryAvatar), "x.jpg")
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := l.Remove(p); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Error("file should be gone")
	}
	if err := l.Remove(p); err != nil {
		t.Errorf("removing a missing file should succeed, got %v", err)
	}
	outside := filepath.Join(t.TempDir(), "keep.txt")
	os.WriteFile(outside, []byte("x"), 0644)
	if err := l.Remove(outside); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("expected ErrOutsideRoot, got %v", err)
	}
	if !strings.HasPrefix(l.Dir(compressor.CategoryAvatar), l.Root()) {
		t.Error("category dir should be under root")
	}
}

func TestNewLayoutRejectsUnknownCategory(t *testing.T) {
	if _, err := NewLayout(t.TempDir(), "/u", map[string]string{"banner": "b"}); err == nil {
		t.Fatal("expected error for unknown category")
	}
}
