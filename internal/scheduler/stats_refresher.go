package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

const (
	// DefaultStatsInterval is how often the global stats are recomputed
	DefaultStatsInterval = 5 * time.Minute
)

// StatsSource computes the global overview. *sqlite.Store implements it.
type StatsSource interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

// StatsSnapshot is one computed overview and when it was taken
type StatsSnapshot struct {
	domain.Stats
	RefreshedAt time.Time `json:"refreshed_at"`
}

// StatsRefresher keeps a recent StatsSnapshot for cheap reads
type StatsRefresher struct {
	source        StatsSource
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}

	mu   sync.RWMutex
	last *StatsSnapshot
}

// NewStatsRefresher creates a new stats refresher. A nil manualTrigger
// disables manual refreshes through the channel.
func NewStatsRefresher(
	source StatsSource,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *StatsRefresher {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}

	return &StatsRefresher{
		source:        source,
		logger:        log.With(logger.String("component", "stats")),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start computes a first snapshot and then refreshes it periodically
func (sr *StatsRefresher) Start(ctx context.Context) error {
	// Run immediately on start
	if _, err := sr.Refresh(ctx); err != nil {
		sr.logger.Warn("initial stats refresh failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(sr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := sr.Refresh(ctx); err != nil {
					sr.logger.Error("stats refresh failed",
						logger.Error(err))
				}
			case <-sr.manualTrigger:
				sr.logger.Info("manual stats refresh triggered")
				if _, err := sr.Refresh(ctx); err != nil {
					sr.logger.Error("stats refresh failed",
						logger.Error(err))
				}
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the refresher. It is safe to call more than once.
func (sr *StatsRefresher) Stop() {
	sr.stopOnce.Do(func() { close(sr.stopCh) })
}

// Refresh recomputes the snapshot now
func (sr *StatsRefresher) Refresh(ctx context.Context) (StatsSnapshot, error) {
	stats, err := sr.source.Stats(ctx)
	if err != nil {
		return StatsSnapshot{}, err
	}

	snap := StatsSnapshot{Stats: stats, RefreshedAt: time.Now().UTC()}
	sr.mu.Lock()
	sr.last = &snap
	sr.mu.Unlock()

	sr.logger.Debug("stats refreshed",
		logger.Int("total_users", stats.TotalUsers),
		logger.Int("total_bookmarks", stats.TotalBookmarks),
		logger.Int("today_syncs", stats.TodaySyncs))
	return snap, nil
}

// Last returns the latest snapshot, false if none was computed yet
func (sr *StatsRefresher) Last() (StatsSnapshot, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	if sr.last == nil {
		return StatsSnapshot{}, false
	}
	return *sr.last, true
}
