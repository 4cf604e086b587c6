package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBatchesChanges(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "_site")
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))

	w, err := New([]string{root}, Options{Debounce: 50 * time.Millisecond, Ignore: []string{out}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, paths []string) { batches <- paths })
	}()

	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.md"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "b.md"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(out, "ignored.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644))

	var got []string
	select {
	case got = <-batches:
	case <-ctx.Done():
		t.Fatal("no batch delivered")
	}
	require.Contains(t, got, filepath.Join(root, "docs", "a.md"))
	for _, p := range got {
		require.NotContains(t, p, "_site")
		require.NotContains(t, p, ".hidden")
	}

	cancel()
	require.NoError(t, <-done)
}
