package optionchain

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
)

type DaySummary struct {
	DayStats
	IvMedian float64 `json:"iv_median"`
	IvMean   float64 `json:"iv_mean"`
	Error    string  `json:"error,omitempty"`
}

type FailedDay struct {
	File  string `json:"file"`
	Day   string `json:"day"`
	Error string `json:"error"`
}

type RunTotals struct {
	Days     int `json:"days"`
	Read     int `json:"read"`
	Retained int `json:"retained"`
	Filtered int `json:"filtered"`
	Errored  int `json:"errored"`
	Dropped  int `json:"dropped"`
	NaN      int `json:"nan"`
}

// RunSummary is the report of one run. A run always completes; failed days
// are listed rather than aborting it.
type RunSummary struct {
	RunID    string       `json:"run_id"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Totals   RunTotals    `json:"totals"`
	Days     []DaySummary `json:"days"`
	Failed   []FailedDay  `json:"failed"`
}

func NewRunSummary(runID string, started, finished time.Time, results []DayResult) *RunSummary {
	s := &RunSummary{
		RunID:    runID,
		Started:  started,
		Finished: finished,
		Days:     make([]DaySummary, 0, len(results)),
		Failed:   []FailedDay{},
	}
	for _, r := range results {
		d := DaySummary{DayStats: r.DayStats}
		if len(r.ivs) > 0 {
			d.IvMedian, _ = stats.Median(r.ivs)
			d.IvMean, _ = stats.Mean(r.ivs)
		}
		if r.Err != nil {
			d.Error = r.Err.Error()
			s.Failed = append(s.Failed, FailedDay{File: r.File, Day: r.Day.Format(dayLayout), Error: r.Err.Error()})
		}
		s.Days = append(s.Days, d)

		s.Totals.Days++
		s.Totals.Read += r.Read
		s.Totals.Retained += r.Retained
		s.Totals.Filtered += r.Filtered
		s.Totals.Errored += r.Errored
		s.Totals.Dropped += r.Discarded + r.DuplicateStrikes
		s.Totals.NaN += r.NaN
	}
	return s
}

func (s *RunSummary) FailedDays() int {
	return len(s.Failed)
}

// Render writes the per-day table and the totals.
func (s *RunSummary) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"day", "file", "read", "retained", "filtered", "errored", "dropped", "nan", "iv median", "iv mean", "status"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, d := range s.Days {
		status := "ok"
		if d.Error != "" {
			status = "failed"
		}
		table.Append([]string{
			d.Day.Format(dayLayout),
			filepath.Base(d.File),
			strconv.Itoa(d.Read),
			strconv.Itoa(d.Retained),
			strconv.Itoa(d.Filtered),
			strconv.Itoa(d.Errored),
			strconv.Itoa(d.Discarded + d.DuplicateStrikes),
			strconv.Itoa(d.NaN),
			fmt.Sprintf("%.4f", d.IvMedian),
			fmt.Sprintf("%.4f", d.IvMean),
			status,
		})
	}
	table.SetFooter([]string{"total", strconv.Itoa(s.Totals.Days),
		strconv.Itoa(s.Totals.Read), strconv.Itoa(s.Totals.Retained), strconv.Itoa(s.Totals.Filtered),
		strconv.Itoa(s.Totals.Errored), strconv.Itoa(s.Totals.Dropped), strconv.Itoa(s.Totals.NaN),
		"", "", fmt.Sprintf("%d failed", len(s.Failed))})
	table.Render()
	for _, f := range s.Failed {
		fmt.Fprintf(w, "failed %s %s: %s\n", f.Day, f.File, f.Error)
	}
}

func (s *RunSummary) WriteJSON(path string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
