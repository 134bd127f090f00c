package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/sources/libraryfile"
	"github.com/cosmik-network/cardsync/internal/usecase"
)

// ImportResult summarizes one import run.
type ImportResult struct {
	Items    int `json:"items"`
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// LibraryImporter periodically replays a library import file through
// AddURLToLibrary. Replays are idempotent.
type LibraryImporter struct {
	loader        *libraryfile.Loader
	mapper        *libraryfile.Mapper
	commands      *usecase.Commands
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewLibraryImporter creates a new library importer
func NewLibraryImporter(
	importFile string,
	commands *usecase.Commands,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *LibraryImporter {
	return &LibraryImporter{
		loader:        libraryfile.NewLoader(importFile),
		mapper:        libraryfile.NewMapper(),
		commands:      commands,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start imports once, then keeps importing on the interval and on every
// manual trigger.
func (li *LibraryImporter) Start(ctx context.Context) error {
	if _, err := li.Import(ctx); err != nil {
		return fmt.Errorf("initial import failed: %w", err)
	}

	ticker := time.NewTicker(li.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				li.run(ctx)
			case <-li.manualTrigger:
				li.logger.Info("manual import triggered")
				li.run(ctx)
			case <-li.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the importer
func (li *LibraryImporter) Stop() {
	close(li.stopCh)
}

func (li *LibraryImporter) run(ctx context.Context) {
	if _, err := li.Import(ctx); err != nil {
		li.logger.Error("failed to import library file",
			logger.Error(err))
	}
}

// Import loads the file and adds every item. A failing item is logged and
// does not stop the others.
func (li *LibraryImporter) Import(ctx context.Context) (ImportResult, error) {
	li.logger.Info("importing library file",
		logger.String("path", li.loader.Path()))

	file, err := li.loader.Load()
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to load import file: %w", err)
	}

	requests, err := li.mapper.MapItems(file)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to map import file: %w", err)
	}

	result := ImportResult{Items: len(requests)}
	for _, req := range requests {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, err := li.commands.AddURLToLibrary(ctx, req); err != nil {
			result.Failed++
			li.logger.Warn("failed to import url",
				logger.String("url", req.URL),
				logger.Error(err))
			continue
		}
		result.Imported++
	}

	li.logger.Info("library file imported",
		logger.Int("items", result.Items),
		logger.Int("imported", result.Imported),
		logger.Int("failed", result.Failed))

	return result, nil
}
