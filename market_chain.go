package optionchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ChainMarketData wires the loader collaborators for one process: the sink,
// the shared error log, the rate tables and the day worker pool.
type ChainMarketData struct {
	Config Config
	RunID  string
	Sink   Sink
	ErrLog *ErrorLog
	Loader *DayLoader
	Runner *Runner
}

func NewChainMarketData(ctx context.Context, cfg Config) (*ChainMarketData, error) {
	cfg.Loader = cfg.Loader.withDefaults()
	cfg.Run = cfg.Run.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()

	rates, dividends, err := cfg.Rates.Sources()
	if err != nil {
		return nil, err
	}
	backfill, err := NewGreeksBackfiller(cfg.Loader, NewBlackScholesPricer(), rates, dividends)
	if err != nil {
		return nil, err
	}
	errlog, err := OpenErrorLog(cfg.Run.ErrorLogPath, runID)
	if err != nil {
		return nil, err
	}
	sink, err := NewSink(ctx, cfg.Sink)
	if err != nil {
		_ = errlog.Close()
		return nil, fmt.Errorf("open sink %s: %w", cfg.Sink.Kind, err)
	}
	loader, err := NewDayLoader(cfg.Loader, backfill, sink, errlog)
	if err != nil {
		_ = sink.Close()
		_ = errlog.Close()
		return nil, err
	}
	loader.SetBatchWrites(cfg.Sink.Batch)

	return &ChainMarketData{
		Config: cfg,
		RunID:  runID,
		Sink:   sink,
		ErrLog: errlog,
		Loader: loader,
		Runner: NewRunner(loader, cfg.Run.Workers),
	}, nil
}

// Files resolves explicit paths, or scans the data dir when none are given.
func (m *ChainMarketData) Files(paths []string) ([]DayFile, error) {
	if len(paths) == 0 {
		return DiscoverDayFiles(m.Config.Run.DataDir, m.Config.Run.FileGlob)
	}
	files := make([]DayFile, 0, len(paths))
	for _, p := range paths {
		day, err := DayFromFileName(p)
		if err != nil {
			return nil, err
		}
		files = append(files, DayFile{Path: p, Day: day})
	}
	return files, nil
}

func (m *ChainMarketData) Load(ctx context.Context, paths []string) (*RunSummary, error) {
	files, err := m.Files(paths)
	if err != nil {
		return nil, err
	}
	log.Infof("运行 %s: %d 个文件, %d 个并发", m.RunID, len(files), m.Runner.Workers())
	return m.Runner.Run(ctx, m.RunID, files), nil
}

func (m *ChainMarketData) NewWatcher(onRun func(*RunSummary)) *Watcher {
	return NewWatcher(m.Runner, m.Config.Run, onRun)
}

func (m *ChainMarketData) Close() error {
	return errors.Join(m.Sink.Close(), m.ErrLog.Close())
}
