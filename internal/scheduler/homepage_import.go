package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/reconcile"
	"github.com/MrSnakeDoc/marksync/internal/sources/homepage"
)

// Merger is the part of the reconciler the importer needs
type Merger interface {
	Merge(ctx context.Context, userID int64, snapshot []domain.ClientBookmark) (reconcile.Result, error)
}

// HomepageImporter periodically merges a Homepage yaml file into the
// bookmarks of one user
type HomepageImporter struct {
	merger   Merger
	file     string
	kind     homepage.Kind
	userID   int64
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHomepageImporter creates a new homepage importer
func NewHomepageImporter(
	merger Merger,
	file string,
	kind homepage.Kind,
	userID int64,
	log logger.Logger,
	interval time.Duration,
) *HomepageImporter {
	return &HomepageImporter{
		merger:   merger,
		file:     file,
		kind:     kind,
		userID:   userID,
		logger:   log.With(logger.String("component", "homepage_import"), logger.String("file", file)),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start imports once and then on every interval
func (hi *HomepageImporter) Start(ctx context.Context) error {
	// Load immediately on start
	if err := hi.Import(ctx); err != nil {
		return fmt.Errorf("initial import failed: %w", err)
	}
	if hi.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(hi.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := hi.Import(ctx); err != nil {
					hi.logger.Error("failed to import homepage file",
						logger.String("file", hi.file),
						logger.Error(err))
				}
			case <-hi.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the importer
func (hi *HomepageImporter) Stop() {
	hi.stopOnce.Do(func() { close(hi.stopCh) })
}

// Import reads the file and merges it. Entries carry no timestamp, so
// bookmarks already in the cloud are left as they are.
func (hi *HomepageImporter) Import(ctx context.Context) error {
	data, err := os.ReadFile(hi.file)
	if err != nil {
		return fmt.Errorf("failed to read homepage file: %w", err)
	}

	snapshot, err := homepage.Import(hi.kind, data)
	if err != nil {
		return fmt.Errorf("failed to map homepage file: %w", err)
	}

	res, err := hi.merger.Merge(ctx, hi.userID, snapshot)
	if err != nil {
		return fmt.Errorf("failed to merge homepage bookmarks: %w", err)
	}

	hi.logger.Info("homepage file imported",
		logger.String("file", hi.file),
		logger.Int64("user_id", hi.userID),
		logger.Int("entries", len(snapshot)),
		logger.Int("added", res.Added))
	return nil
}
