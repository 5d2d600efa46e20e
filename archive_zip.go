package optionchain

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

const DefaultFileGlob = "UnderlyingOptionsIntervals_*"

var dayInFileName = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

// DayFile is one trading day's input file.
type DayFile struct {
	Path string
	Day  time.Time
}

// DayFromFileName takes the trading day from the last YYYY-MM-DD in the name.
func DayFromFileName(path string) (time.Time, error) {
	matches := dayInFileName.FindAllString(filepath.Base(path), -1)
	if len(matches) == 0 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrorNoDayInFileName, path)
	}
	day, err := time.Parse(dayLayout, matches[len(matches)-1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrorNoDayInFileName, path, err)
	}
	return day, nil
}

// DiscoverDayFiles walks dir for .zip and .csv files matching glob and
// returns them ordered by day, then path.
func DiscoverDayFiles(dir, glob string) ([]DayFile, error) {
	if glob == "" {
		glob = DefaultFileGlob
	}
	var files []DayFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".zip" && ext != ".csv" {
			return nil
		}
		matched, err := filepath.Match(glob, d.Name())
		if err != nil {
			return err
		}
		if !matched {
			return nil
		}
		day, err := DayFromFileName(path)
		if err != nil {
			log.Warnf("skip %s: %v", path, err)
			return nil
		}
		files = append(files, DayFile{Path: path, Day: day})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].Day.Equal(files[j].Day) {
			return files[i].Day.Before(files[j].Day)
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// OpenDayFile opens the CSV stream of a day file. For an archive this is its
// first entry.
func OpenDayFile(path string) (io.ReadCloser, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return os.Open(path)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	if len(zr.File) == 0 {
		_ = zr.Close()
		return nil, fmt.Errorf("%w: %s", ErrorEmptyArchive, path)
	}
	if len(zr.File) > 1 {
		log.Warnf("archive %s holds %d entries, reading only %s", path, len(zr.File), zr.File[0].Name)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		_ = zr.Close()
		return nil, fmt.Errorf("open entry %s in %s: %w", zr.File[0].Name, path, err)
	}
	return &archiveEntry{ReadCloser: rc, archive: zr}, nil
}

type archiveEntry struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (e *archiveEntry) Close() error {
	err := e.ReadCloser.Close()
	if cerr := e.archive.Close(); err == nil {
		err = cerr
	}
	return err
}
