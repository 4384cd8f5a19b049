package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/voyagen/streamscout/internal/cache"
	"github.com/voyagen/streamscout/internal/checker"
	"github.com/voyagen/streamscout/internal/store"
)

// checkLockTTL bounds how long a crashed worker can block a source.
const checkLockTTL = 30 * time.Minute

// ErrCheckRunning is returned when another pass holds the source's lock.
var ErrCheckRunning = errors.New("a check for this source is already running")

// CheckSource probes every channel of a stored source and persists the
// results. With Redis configured, overlapping passes on the same source are
// rejected.
func CheckSource(ctx context.Context, s store.Store, c *checker.Checker, rds *cache.Redis, sourceID int64) (checker.Summary, error) {
	if rds != nil {
		unlock, err := cache.TryLock(ctx, rds, cache.CheckLockKey(sourceID), checkLockTTL)
		if errors.Is(err, cache.ErrLocked) {
			return checker.Summary{}, ErrCheckRunning
		}
		if err != nil {
			return checker.Summary{}, err
		}
		defer unlock()
	}

	channels, err := s.ListChannelsBySource(ctx, sourceID)
	if err != nil {
		return checker.Summary{}, fmt.Errorf("ListChannelsBySource: %w", err)
	}

	sum := c.CheckAll(ctx, channels)

	updates := make([]store.StatusUpdate, 0, len(channels))
	for _, ch := range channels {
		u := store.StatusUpdate{ChannelID: ch.ID, Status: ch.Status, CheckedAt: time.Now().UTC()}
		if ch.CheckedAt != nil {
			u.CheckedAt = *ch.CheckedAt
		}
		updates = append(updates, u)
	}
	// Persist even if ctx was cancelled mid-pass; the statuses are still terminal.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := s.UpdateChannelStatuses(wctx, updates); err != nil {
		return sum, fmt.Errorf("UpdateChannelStatuses: %w", err)
	}
	if err := s.UpdateSourceLastChecked(wctx, sourceID); err != nil {
		return sum, fmt.Errorf("UpdateSourceLastChecked: %w", err)
	}
	log.Printf("check: source %d: %d/%d online", sourceID, sum.Online, sum.Total)
	return sum, nil
}
