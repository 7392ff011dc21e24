package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu      sync.Mutex
	batches [][]Change
}

func (c *collector) collect(changes []Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, changes)
}

func (c *collector) allPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, b := range c.batches {
		for _, ch := range b {
			out = append(out, ch.Path)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := New(Options{Debounce: 20 * time.Millisecond}, c.collect)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	file := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(file, []byte("package a\n"), 0o644))

	waitFor(t, func() bool {
		for _, p := range c.allPaths() {
			if p == file {
				return true
			}
		}
		return false
	})
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := New(Options{Debounce: 50 * time.Millisecond}, c.collect)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "burst.go"), []byte("package b\n"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, func() bool { return len(c.allPaths()) > 0 })
	time.Sleep(100 * time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, 1, len(c.batches), "burst collapses into one batch")
}

func TestWatcherExcludesAndAccept(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := New(Options{
		Debounce:     20 * time.Millisecond,
		ExcludeFiles: []string{"*.tmp"},
		Accept:       func(path string) bool { return strings.HasSuffix(path, ".go") },
	}, c.collect)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644))
	keep := filepath.Join(dir, "keep.go")
	require.NoError(t, os.WriteFile(keep, []byte("package k\n"), 0o644))

	waitFor(t, func() bool {
		for _, p := range c.allPaths() {
			if p == keep {
				return true
			}
		}
		return false
	})

	for _, p := range c.allPaths() {
		assert.NotContains(t, p, "skip.")
	}
}

func TestWatcherReportsRemovals(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "gone.go")
	require.NoError(t, os.WriteFile(file, []byte("package g\n"), 0o644))

	c := &collector{}
	w, err := New(Options{Debounce: 20 * time.Millisecond}, c.collect)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.Remove(file))

	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, b := range c.batches {
			for _, ch := range b {
				if ch.Path == file && ch.Removed {
					return true
				}
			}
		}
		return false
	})
}
