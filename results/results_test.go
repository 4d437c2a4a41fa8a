package results

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC) }

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("write did not finish")
		return nil
	}
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		level   int
		seconds int
		want    string
	}{
		{"plain", Plain, 3, 42, "Result: Level 3 Time survived: 42 seconds"},
		{"dated", Dated, 7, 100, "2024_03_07 Result: Level 7 Time survived: 100 seconds"},
		{"zero", Plain, 1, 0, "Result: Level 1 Time survived: 0 seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.format.Line(tt.level, tt.seconds, fixedNow()))
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("plain")
	require.NoError(t, err)
	assert.Equal(t, Plain, f)

	f, err = ParseFormat(" Dated ")
	require.NoError(t, err)
	assert.Equal(t, Dated, f)

	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

func TestFileWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "PongResults.txt")
	w := NewFileWriter(path, Dated)
	w.now = fixedNow

	require.NoError(t, waitErr(t, w.Write(2, 20)))
	require.NoError(t, waitErr(t, w.Write(6, 95)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.Equal(t, []string{
		"2024_03_07 Result: Level 2 Time survived: 20 seconds",
		"2024_03_07 Result: Level 6 Time survived: 95 seconds",
	}, lines)
	assert.Equal(t, path, w.Path())
}

func TestFileWriterConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "PongResults.txt")
	w := NewFileWriter(path, Plain)

	var pending []<-chan error
	for i := 0; i < 20; i++ {
		pending = append(pending, w.Write(i, i))
	}
	for _, c := range pending {
		require.NoError(t, waitErr(t, c))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, strings.Count(string(data), "\n"))
}

func TestFileWriterReportsFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// The parent "directory" is a regular file.
	w := NewFileWriter(filepath.Join(blocker, "PongResults.txt"), Plain)
	assert.Error(t, waitErr(t, w.Write(1, 1)))
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "PongResults.txt")
	require.NoError(t, os.WriteFile(path, []byte("Result\n"), 0644))

	require.NoError(t, Clear(path))
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.NoError(t, Clear(path))
}

type stubWriter struct {
	err   error
	calls int
}

func (s *stubWriter) Write(int, int) <-chan error {
	s.calls++
	errc := make(chan error, 1)
	errc <- s.err
	close(errc)
	return errc
}

func TestMultiWriter(t *testing.T) {
	boom := errors.New("boom")
	ok := &stubWriter{}
	bad := &stubWriter{err: boom}

	err := waitErr(t, MultiWriter{ok, bad}.Write(4, 60))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, bad.calls)

	assert.NoError(t, waitErr(t, MultiWriter{ok}.Write(1, 2)))
	assert.NoError(t, waitErr(t, MultiWriter{}.Write(1, 2)))
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}

func TestRedisWriterReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	w := NewRedisWriter(client, "survivalpong:results", Plain)
	err := waitErr(t, w.Write(3, 30))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "survivalpong:results")
}
