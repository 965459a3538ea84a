package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleAfterQuiet(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	settled := make(chan struct{}, 4)

	w, err := New(dir, 200*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		settled <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte{byte(i)}, 0644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-settled:
	case <-time.After(5 * time.Second):
		t.Fatal("settle callback never ran")
	}

	// A burst collapses into a single callback.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCallbackErrorStopsRun(t *testing.T) {
	dir := t.TempDir()
	boom := assert.AnError

	w, err := New(dir, 20*time.Millisecond, func(context.Context) error { return boom }, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0644))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return the callback error")
	}
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".lvcs", "files"), 0755))

	w, err := New(dir, 0, func(context.Context) error { return nil }, nil, ".lvcs")
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.Equal(t, DefaultDebounce, w.debounce)

	cases := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write", fsnotify.Event{Name: filepath.Join(dir, "a.bin"), Op: fsnotify.Write}, true},
		{"chmod only", fsnotify.Event{Name: filepath.Join(dir, "a.bin"), Op: fsnotify.Chmod}, false},
		{"ignored dir", fsnotify.Event{Name: filepath.Join(dir, ".lvcs"), Op: fsnotify.Create}, false},
		{"inside ignored dir", fsnotify.Event{Name: filepath.Join(dir, ".lvcs", "files", "x"), Op: fsnotify.Create}, false},
		{"nested", fsnotify.Event{Name: filepath.Join(dir, "d", "e", "f"), Op: fsnotify.Remove}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.relevant(tc.ev))
		})
	}
}
