package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_FiresOncePerBurst(t *testing.T) {
	dir := t.TempDir()
	master := filepath.Join(dir, "file1.csv")
	target := filepath.Join(dir, "file2.csv")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{master, target, other} {
		require.NoError(t, os.WriteFile(p, []byte("a"), 0o644))
	}

	w, err := NewWatcher(50 * time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Watch(master, target))

	calls := make(chan []string, 4)
	w.OnChange = func(ctx context.Context, paths []string) error {
		calls <- paths
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let the loop start before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(master, []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("abcdef"), 0o644))

	select {
	case paths := <-calls:
		wantMaster, _ := filepath.Abs(master)
		wantTarget, _ := filepath.Abs(target)
		assert.Equal(t, []string{wantMaster, wantTarget}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("OnChange not called")
	}

	select {
	case paths := <-calls:
		t.Fatalf("unexpected second call: %v", paths)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatch_MissingFile(t *testing.T) {
	w, err := NewWatcher(0)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing.xlsx")))
}
