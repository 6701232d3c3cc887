package safeio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newFS(t *testing.T) (*SafeFS, string) {
	t.Helper()
	dir := t.TempDir()
	fsys, err := NewSafeFS(dir)
	if err != nil {
		t.Fatalf("NewSafeFS() error = %v", err)
	}
	return fsys, fsys.Root()
}

func TestSafeWriteThenRead(t *testing.T) {
	fsys, root := newFS(t)

	abs, err := fsys.SafeWriteFile(filepath.Join("run1", "turn_0001.ts"), []byte("code"))
	if err != nil {
		t.Fatalf("SafeWriteFile() error = %v", err)
	}
	if !strings.HasPrefix(abs, root) {
		t.Fatalf("written path %q escapes root %q", abs, root)
	}

	data, err := fsys.SafeReadFile("run1/turn_0001.ts")
	if err != nil {
		t.Fatalf("SafeReadFile() error = %v", err)
	}
	if string(data) != "code" {
		t.Fatalf("SafeReadFile() = %q, want code", data)
	}
}

func TestSafeFSRejectsAbsolutePaths(t *testing.T) {
	fsys, root := newFS(t)

	inside := filepath.Join(root, "a.txt")
	if err := os.WriteFile(inside, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := fsys.SafeReadFile(inside); err == nil {
		t.Fatalf("SafeReadFile(absolute) = nil error, want rejection")
	}
	if _, err := fsys.SafeWriteFile("/etc/passwd", []byte("x")); err == nil {
		t.Fatalf("SafeWriteFile(absolute) = nil error, want rejection")
	}
}

func TestSafeFSRejectsTraversal(t *testing.T) {
	fsys, _ := newFS(t)

	for _, p := range []string{"..", "../sibling", "a/../../outside", "run1/../../../etc"} {
		if _, err := fsys.SafeWriteFile(p, []byte("x")); err == nil {
			t.Fatalf("SafeWriteFile(%q) = nil error, want rejection", p)
		}
	}
	if _, err := fsys.SafeReadFile("../outside.txt"); err == nil {
		t.Fatalf("SafeReadFile(traversal) = nil error, want rejection")
	}
}

func TestSafeFSRejectsSymlinkEscape(t *testing.T) {
	fsys, root := newFS(t)

	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if _, err := fsys.SafeReadFile("link/secret.txt"); err == nil {
		t.Fatalf("SafeReadFile(symlink escape) = nil error, want rejection")
	}
}

func TestSafeMkdirAllAndReadDir(t *testing.T) {
	fsys, _ := newFS(t)

	if _, err := fsys.SafeMkdirAll("runs/run1"); err != nil {
		t.Fatalf("SafeMkdirAll() error = %v", err)
	}
	if _, err := fsys.SafeWriteFile("runs/run1/a.txt", nil); err != nil {
		t.Fatalf("SafeWriteFile() error = %v", err)
	}

	entries, err := fsys.SafeReadDir("runs/run1")
	if err != nil {
		t.Fatalf("SafeReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		t.Fatalf("SafeReadDir() = %v", entries)
	}

	info, err := fsys.SafeStat("runs/run1/a.txt")
	if err != nil {
		t.Fatalf("SafeStat() error = %v", err)
	}
	if info.IsDir() {
		t.Fatalf("SafeStat() reports directory for a file")
	}
}

func TestSafeFSNilAndEmpty(t *testing.T) {
	var fsys *SafeFS
	if _, err := fsys.SafeReadFile("a"); err == nil {
		t.Fatalf("nil SafeFS read = nil error, want rejection")
	}
	if fsys.Root() != "" {
		t.Fatalf("nil Root() = %q, want empty", fsys.Root())
	}

	real, _ := newFS(t)
	if _, err := real.SafeReadFile(""); err == nil {
		t.Fatalf("empty path = nil error, want rejection")
	}
}
