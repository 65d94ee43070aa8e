package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLog(t *testing.T, dir, runID string, lines []string) string {
	t.Helper()
	pm := NewPathManager(dir)
	path, err := pm.EnsureRunLog(runID)
	require.NoError(t, err)

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func appendLog(t *testing.T, path, text string) {
	t.Helper()
	//nolint:gosec // G304: path is from test temp directory
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// finishFlag is a RunDone the test flips once the fake run ends.
type finishFlag struct {
	done atomic.Bool
}

func (f *finishFlag) check(context.Context) (bool, error) {
	return f.done.Load(), nil
}

func TestReader_Lines(t *testing.T) {
	dir := t.TempDir()
	lines := []string{"l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8", "l9", "l10"}
	createTestLog(t, dir, "run1", lines)

	reader := NewReader(NewPathManager(dir))

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "last 3 lines", limit: 3, want: []string{"l8", "l9", "l10"}},
		{name: "more than available", limit: 50, want: lines},
		{name: "exactly available", limit: 10, want: lines},
		{name: "non-positive reads everything", limit: 0, want: lines},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := reader.Lines("run1", tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestReader_Lines_UnterminatedOutput(t *testing.T) {
	dir := t.TempDir()
	path := createTestLog(t, dir, "run1", []string{"packed 2 sprites"})
	appendLog(t, path, "error: atlas overflow")

	reader := NewReader(NewPathManager(dir))

	all, err := reader.Lines("run1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"packed 2 sprites", "error: atlas overflow"}, all)

	last, err := reader.Lines("run1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"error: atlas overflow"}, last)
}

func TestReader_Lines_Empty(t *testing.T) {
	dir := t.TempDir()
	createTestLog(t, dir, "run1", nil)

	result, err := NewReader(NewPathManager(dir)).Lines("run1", 5)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestReader_Lines_NotFound(t *testing.T) {
	reader := NewReader(NewPathManager(t.TempDir()))

	_, err := reader.Lines("nonexistent", 0)
	assert.Error(t, err)
}

func TestReader_Tail(t *testing.T) {
	t.Run("streams appended output until the run finishes", func(t *testing.T) {
		dir := t.TempDir()
		path := createTestLog(t, dir, "run1", []string{"h1", "h2", "h3"})
		reader := NewReader(NewPathManager(dir))

		finish := &finishFlag{}
		out := &syncBuffer{}
		done := make(chan error, 1)
		go func() {
			done <- reader.Tail(context.Background(), "run1", out, TailOptions{
				History: 2,
				Poll:    10 * time.Millisecond,
				Done:    finish.check,
			})
		}()

		require.Eventually(t, func() bool {
			return out.String() == "h2\nh3\n"
		}, 2*time.Second, 10*time.Millisecond)

		appendLog(t, path, "packing page 1\n")
		require.Eventually(t, func() bool {
			return strings.Contains(out.String(), "packing page 1\n")
		}, 2*time.Second, 10*time.Millisecond)

		// Output written right before the run ends must still arrive.
		appendLog(t, path, "wrote atlas.png")
		finish.done.Store(true)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Tail did not return after the run finished")
		}
		assert.Equal(t, "h2\nh3\npacking page 1\nwrote atlas.png\n", out.String())
	})

	t.Run("returns at once for a finished run", func(t *testing.T) {
		dir := t.TempDir()
		createTestLog(t, dir, "run1", []string{"h1", "h2"})
		reader := NewReader(NewPathManager(dir))

		out := &syncBuffer{}
		err := reader.Tail(context.Background(), "run1", out, TailOptions{
			History: 10,
			Poll:    time.Hour,
			Done:    func(context.Context) (bool, error) { return true, nil },
		})

		require.NoError(t, err)
		assert.Equal(t, "h1\nh2\n", out.String())
	})

	t.Run("without Done follows until the context ends", func(t *testing.T) {
		dir := t.TempDir()
		createTestLog(t, dir, "run1", []string{"h1"})
		reader := NewReader(NewPathManager(dir))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		out := &syncBuffer{}
		err := reader.Tail(ctx, "run1", out, TailOptions{Poll: 10 * time.Millisecond})

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, out.String())
	})

	t.Run("status errors stop the tail", func(t *testing.T) {
		dir := t.TempDir()
		createTestLog(t, dir, "run1", nil)
		reader := NewReader(NewPathManager(dir))
		boom := errors.New("catalog locked")

		err := reader.Tail(context.Background(), "run1", &bytes.Buffer{}, TailOptions{
			Done: func(context.Context) (bool, error) { return false, boom },
		})

		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing log", func(t *testing.T) {
		reader := NewReader(NewPathManager(t.TempDir()))

		err := reader.Tail(context.Background(), "missing", &bytes.Buffer{}, TailOptions{})
		assert.Error(t, err)
	})
}
