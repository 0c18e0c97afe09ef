package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherEmitsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("max_concurrent: 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(dir, nil)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	// Give the watch a moment to attach before mutating the file.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("max_concurrent: 9\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case ev, ok := <-w.Events():
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		if filepath.Base(ev.Path) != "config.yaml" {
			t.Errorf("event path = %q", ev.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload event after config write")
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(dir, nil)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	cancel()

	select {
	case _, ok := <-w.Events():
		if ok {
			// A buffered event may still arrive; the channel must close after.
			if _, stillOpen := <-w.Events(); stillOpen {
				t.Fatal("event channel not closed after cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after cancel")
	}
}
