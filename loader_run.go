package optionchain

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers = 8
	MaxWorkers     = 16
)

type RunConfig struct {
	DataDir      string `yaml:"data_dir" env:"DATA_DIR"`             //数据目录
	FileGlob     string `yaml:"file_glob" env:"FILE_GLOB"`           //文件名匹配
	Workers      int    `yaml:"workers" env:"WORKERS"`               //并发处理天数，最多16
	ErrorLogPath string `yaml:"error_log_path" env:"ERROR_LOG_PATH"` //错误日志文件
	WatchCron    string `yaml:"watch_cron" env:"WATCH_CRON"`         //watch模式的cron表达式
	SummaryJSON  string `yaml:"summary_json" env:"SUMMARY_JSON"`     //运行汇总输出文件
}

func (c RunConfig) withDefaults() RunConfig {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.FileGlob == "" {
		c.FileGlob = DefaultFileGlob
	}
	c.Workers = clampWorkers(c.Workers)
	if c.WatchCron == "" {
		c.WatchCron = DefaultWatchCron
	}
	return c
}

func clampWorkers(n int) int {
	if n <= 0 {
		return DefaultWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// DayResult is the outcome of one day task.
type DayResult struct {
	DayStats
	Err error `json:"-"`
}

// Runner processes day files on a bounded pool. Days are independent: a
// failed day is reported and the others carry on.
type Runner struct {
	loader  *DayLoader
	workers int
}

func NewRunner(loader *DayLoader, workers int) *Runner {
	return &Runner{loader: loader, workers: clampWorkers(workers)}
}

func (r *Runner) Workers() int {
	return r.workers
}

// Run loads every file and returns the results in input order.
func (r *Runner) Run(ctx context.Context, runID string, files []DayFile) *RunSummary {
	started := time.Now()
	results := NewMySyncMap[int, DayResult]()

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			_, stats, err := r.loader.LoadFile(ctx, f)
			if err != nil {
				log.Errorf("处理失败 %s: %v", f.Path, err)
			}
			results.Store(i, DayResult{DayStats: stats, Err: err})
			return nil
		})
	}
	_ = g.Wait()

	ordered := make([]DayResult, len(files))
	for i := range files {
		ordered[i], _ = results.Load(i)
	}
	return NewRunSummary(runID, started, time.Now(), ordered)
}
