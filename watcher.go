package optionchain

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const DefaultWatchCron = "0 */5 * * * *"

// Watcher rescans the data directory on a cron schedule and loads the day
// files it has not loaded yet. Only days that loaded cleanly are remembered,
// for the life of the process; a failed day is retried on the next scan and
// the sinks skip rows that are already stored.
type Watcher struct {
	runner    *Runner
	dir       string
	glob      string
	spec      string
	processed MySyncMap[string, struct{}]
	running   atomic.Bool
	onRun     func(*RunSummary)
	c         *cron.Cron
}

func NewWatcher(runner *Runner, config RunConfig, onRun func(*RunSummary)) *Watcher {
	config = config.withDefaults()
	return &Watcher{
		runner:    runner,
		dir:       config.DataDir,
		glob:      config.FileGlob,
		spec:      config.WatchCron,
		processed: NewMySyncMap[string, struct{}](),
		onRun:     onRun,
	}
}

// Start schedules the scans and runs one right away.
func (w *Watcher) Start(ctx context.Context) error {
	w.c = cron.New(cron.WithSeconds())
	_, err := w.c.AddFunc(w.spec, func() {
		if _, err := w.Scan(ctx); err != nil {
			log.Error(err)
		}
	})
	if err != nil {
		return err
	}
	w.c.Start()
	log.Infof("开始监控 %s (%s)", w.dir, w.spec)
	go func() {
		if _, err := w.Scan(ctx); err != nil {
			log.Error(err)
		}
	}()
	return nil
}

func (w *Watcher) Stop() {
	if w.c != nil {
		<-w.c.Stop().Done()
	}
}

// Scan loads the new files once. It returns nil when there was nothing to do
// or a previous scan is still running.
func (w *Watcher) Scan(ctx context.Context) (*RunSummary, error) {
	if !w.running.CompareAndSwap(false, true) {
		log.Debug("上一次扫描尚未结束")
		return nil, nil
	}
	defer w.running.Store(false)

	files, err := DiscoverDayFiles(w.dir, w.glob)
	if err != nil {
		return nil, err
	}
	var fresh []DayFile
	for _, f := range files {
		if _, seen := w.processed.Load(f.Path); !seen {
			fresh = append(fresh, f)
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}
	summary := w.runner.Run(ctx, uuid.NewString(), fresh)
	for i, f := range fresh {
		if summary.Days[i].Error != "" {
			log.Warnf("%s 处理失败，下次扫描重试", f.Path)
			continue
		}
		w.processed.Store(f.Path, struct{}{})
	}
	if w.onRun != nil {
		w.onRun(summary)
	}
	return summary, nil
}

func (w *Watcher) Processed() int {
	return w.processed.Length()
}
