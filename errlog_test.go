package optionchain

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorLogSerializesWriters(t *testing.T) {
	var buf bytes.Buffer
	l := NewErrorLog(&buf)

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Record("day.zip", i+2, "bad strike", "^SPX,2020-03-02 10:00:00\r\n")
			}
		}(w)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 16*50)
	assert.Equal(t, int64(16*50), l.Count())
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "*Error* file day.zip, line "), line)
		assert.True(t, strings.HasSuffix(line, "bad strike | ^SPX,2020-03-02 10:00:00"), line)
	}
}

func TestOpenErrorLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "errors.txt")
	l, err := OpenErrorLog(path, "run-42")
	require.NoError(t, err)
	l.Record("a.zip", 0, "day failed", "")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# run run-42 started ")
	assert.Contains(t, string(data), "*Error* file a.zip, line 0: day failed\n")

	discard, err := OpenErrorLog("", "x")
	require.NoError(t, err)
	discard.Record("a", 1, "b", "c")
	assert.Equal(t, int64(1), discard.Count())
	assert.NoError(t, discard.Close())

	var nilLog *ErrorLog
	nilLog.Record("a", 1, "b", "c")
	assert.Zero(t, nilLog.Count())
}
