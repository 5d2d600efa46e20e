package optionchain

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayFromFileName(t *testing.T) {
	day, err := DayFromFileName("/data/2020/UnderlyingOptionsIntervals_900sec_calcs_oi_2020-03-02.zip")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC), day)

	day, err = DayFromFileName("2019-12-31_UnderlyingOptionsIntervals_2020-01-02.csv")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), day, "last date wins")

	_, err = DayFromFileName("UnderlyingOptionsIntervals.zip")
	assert.ErrorIs(t, err, ErrorNoDayInFileName)

	_, err = DayFromFileName("UnderlyingOptionsIntervals_2020-13-45.zip")
	assert.ErrorIs(t, err, ErrorNoDayInFileName)
}

func TestDiscoverDayFiles(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "2020", "03")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	writeZip(t, nested, "UnderlyingOptionsIntervals_900sec_2020-03-03.zip", dayCSV())
	writeZip(t, dir, "UnderlyingOptionsIntervals_900sec_2020-03-02.zip", dayCSV())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UnderlyingOptionsIntervals_900sec_2020-03-04.csv"), []byte(dayCSV()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UnderlyingOptionsIntervals_900sec_2020-03-05.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other_2020-03-06.zip"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UnderlyingOptionsIntervals_nodate.zip"), nil, 0o644))

	files, err := DiscoverDayFiles(dir, "")
	require.NoError(t, err)
	require.Len(t, files, 3)
	days := []string{}
	for _, f := range files {
		days = append(days, f.Day.Format(dayLayout))
	}
	assert.Equal(t, []string{"2020-03-02", "2020-03-03", "2020-03-04"}, days)
}

func TestOpenDayFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("plain csv", func(t *testing.T) {
		path := filepath.Join(dir, "d_2020-03-02.csv")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
		rc, err := OpenDayFile(path)
		require.NoError(t, err)
		defer rc.Close()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(b))
	})

	t.Run("first entry of a multi entry archive", func(t *testing.T) {
		path := writeZip(t, dir, "d_2020-03-02.zip", "first", "second")
		rc, err := OpenDayFile(path)
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "first", string(b))
		assert.NoError(t, rc.Close())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := OpenDayFile(filepath.Join(dir, "missing_2020-03-02.zip"))
		assert.Error(t, err)
	})
}
