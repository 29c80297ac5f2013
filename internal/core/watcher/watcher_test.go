package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, "bang.json", nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func waitForDir(t *testing.T, changed <-chan []string, want string) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case dirs := <-changed:
			for _, d := range dirs {
				if d == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestWatcher_NewPackageDirectory(t *testing.T) {
	root := t.TempDir()

	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, "bang.json", []string{".*"}, func(dirs []string) {
		changed <- dirs
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}

	pkg := filepath.Join(root, "zlib.deb")
	if err := os.Mkdir(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(pkg, "bang.json"), []byte(`{"scantree": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	waitForDir(t, changed, pkg)
}

func TestWatcher_ExistingPackageRewritten(t *testing.T) {
	root := t.TempDir()
	pkg := filepath.Join(root, "busybox.apk")
	if err := os.Mkdir(pkg, 0o755); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, "bang.json", nil, func(dirs []string) {
		changed <- dirs
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(pkg, "bang.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForDir(t, changed, pkg)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	pkg := filepath.Join(root, "pkg")
	if err := os.Mkdir(pkg, 0o755); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, "bang.json", nil, func(dirs []string) {
		changed <- dirs
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(pkg, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "bang.json"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case dirs := <-changed:
		t.Fatalf("unexpected change notification %v", dirs)
	case <-time.After(300 * time.Millisecond):
	}
}
