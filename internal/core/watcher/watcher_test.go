package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, dir string, excludeDirs, excludeFiles []string) (*Watcher, chan []string) {
	t.Helper()
	changed := make(chan []string, 16)
	w, err := NewWatcher(50*time.Millisecond, excludeDirs, excludeFiles, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })
	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}
	return w, changed
}

func waitFor(t *testing.T, changed chan []string, want string) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case paths := <-changed:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for a change of %s", want)
		}
	}
}

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadGlob(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, []string{"[bad"}, nil, func([]string) {}); err == nil {
		t.Fatal("expected an error for an invalid glob")
	}
}

func TestWatcher_ReportsPHPFiles(t *testing.T) {
	dir := t.TempDir()
	_, changed := newTestWatcher(t, dir, []string{"vendor"}, []string{"*.blade.php"})

	file := filepath.Join(dir, "User.php")
	if err := os.WriteFile(file, []byte("<?php class User {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, file)

	for _, name := range []string{"notes.txt", "view.blade.php"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case paths := <-changed:
		t.Errorf("excluded files triggered a change: %v", paths)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	_, changed := newTestWatcher(t, dir, nil, nil)

	subdir := filepath.Join(dir, "src", "Models")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(subdir, "Post.php")
	if err := os.WriteFile(file, []byte("<?php class Post {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, file)
}

func TestWatcher_DeleteIsReported(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "gone.php")
	if err := os.WriteFile(file, []byte("<?php"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, changed := newTestWatcher(t, dir, nil, nil)

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, file)
}

func TestWatcher_UnchangedContentIsSkipped(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "same.php")
	content := []byte("<?php function same() {}")
	if err := os.WriteFile(file, content, 0o644); err != nil {
		t.Fatal(err)
	}
	_, changed := newTestWatcher(t, dir, nil, nil)

	if err := os.WriteFile(file, content, 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case paths := <-changed:
		t.Errorf("rewrite with identical content reported: %v", paths)
	case <-time.After(300 * time.Millisecond):
	}

	if err := os.WriteFile(file, []byte("<?php function different() {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, file)
}

func TestWatcher_Filters(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, []string{"vendor", ".*"}, []string{"*.tpl.php"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if !w.shouldExcludeFile("main.py") {
		t.Error("expected non-PHP files to be excluded")
	}
	if w.shouldExcludeFile("/src/Main.PHP") {
		t.Error("extension matching must be case-insensitive")
	}
	if !w.shouldExcludeFile("page.tpl.php") {
		t.Error("expected file glob exclusion")
	}
	if !w.shouldExcludeDir("/app/vendor") || !w.shouldExcludeDir("/app/.git") {
		t.Error("expected directory glob exclusion")
	}

	w.SetExtensions([]string{".inc"})
	if w.shouldExcludeFile("lib.inc") || !w.shouldExcludeFile("lib.php") {
		t.Error("SetExtensions must replace the extension filter")
	}

	if err := w.SetExcludes(nil, nil); err != nil {
		t.Fatal(err)
	}
	if w.shouldExcludeDir("/app/vendor") {
		t.Error("SetExcludes must replace the directory globs")
	}
}
