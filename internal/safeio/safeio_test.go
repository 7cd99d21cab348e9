package safeio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSafeFSAllowsAbsoluteUnderRoot(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fs, err := NewSafeFS(dir)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	if _, err := fs.SafeReadFile(p); err != nil {
		t.Fatalf("SafeReadFile absolute: %v", err)
	}
}

func TestSafeWriteFileCreatesParents(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	if err := fs.SafeWriteFile("pkg/sub/mod.py", []byte("x = 1\n")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	got, err := fs.SafeReadFile("pkg/sub/mod.py")
	if err != nil {
		t.Fatalf("SafeReadFile: %v", err)
	}
	if string(got) != "x = 1\n" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestSafeWriteFileRejectsTraversal(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	for _, p := range []string{"../escape.py", "a/../../escape.py", "/etc/passwd"} {
		if err := fs.SafeWriteFile(p, []byte("x")); !errors.Is(err, ErrTraversal) {
			t.Fatalf("SafeWriteFile(%q) err = %v, want ErrTraversal", p, err)
		}
	}
}

func TestSafeFSRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	fs, err := NewSafeFS(root)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	if err := fs.SafeWriteFile("link/x.py", []byte("x")); !errors.Is(err, ErrTraversal) {
		t.Fatalf("expected traversal error, got %v", err)
	}
}

func TestEmptyPath(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	if _, err := fs.Abs("  "); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
}
