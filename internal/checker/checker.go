// Package checker probes channel URLs in fixed-size concurrent batches and
// records each channel as online or offline.
package checker

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voyagen/streamscout/internal/filter"
	"github.com/voyagen/streamscout/internal/models"
)

const (
	DefaultBatchSize = 15
	DefaultTimeout   = 5 * time.Second
)

// ProgressFunc is called after each batch has been applied.
// batchIndex is 1-based, totalBatches is the total number of batches.
type ProgressFunc func(batchIndex, totalBatches int)

// Summary describes one finished pass.
type Summary struct {
	Total    int           `json:"total"`
	Online   int           `json:"online"`
	Offline  int           `json:"offline"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration_ns"`
	Strategy string        `json:"strategy"`
}

// Checker runs reachability passes. A Checker is safe for concurrent use;
// concurrent passes over the same channels must share a lock.
type Checker struct {
	batchSize int
	timeout   time.Duration
	strategy  Strategy
	prober    Prober
	progress  ProgressFunc
}

// Option configures a Checker.
type Option func(*Checker)

func WithBatchSize(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithStrategy(s Strategy) Option {
	return func(c *Checker) {
		if s != nil {
			c.strategy = s
		}
	}
}

func WithProber(p Prober) Option {
	return func(c *Checker) {
		if p != nil {
			c.prober = p
		}
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *Checker) { c.progress = fn }
}

// New returns a Checker with batch size 15, a 5s probe timeout, the
// optimistic strategy and a HEAD prober, adjusted by opts.
func New(opts ...Option) *Checker {
	c := &Checker{
		batchSize: DefaultBatchSize,
		timeout:   DefaultTimeout,
		strategy:  Optimistic{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.prober == nil {
		c.prober = NewHTTPProber("")
	}
	return c
}

// Strategy returns the configured classification strategy.
func (c *Checker) Strategy() Strategy { return c.strategy }

// CheckAll probes every channel and reorders the slice online-first.
// The caller must not touch channels while the pass runs.
func (c *Checker) CheckAll(ctx context.Context, channels []*models.Channel) Summary {
	return c.CheckAllLocked(ctx, channels, &sync.Mutex{})
}

// CheckAllLocked is CheckAll for channels shared with readers that hold mu.
// Statuses and the final ordering are written only while mu is held;
// probes themselves run unlocked.
func (c *Checker) CheckAllLocked(ctx context.Context, channels []*models.Channel, mu sync.Locker) Summary {
	start := time.Now()
	total := len(channels)
	totalBatches := (total + c.batchSize - 1) / c.batchSize

	// Probes read the URL and headers without the lock, so they work from
	// a snapshot taken before the pass.
	snapshot := make([]models.Channel, total)
	mu.Lock()
	for i, ch := range channels {
		ch.Status = models.StatusChecking
		snapshot[i] = *ch
	}
	mu.Unlock()

	batchIdx := 0
	for i := 0; i < total; i += c.batchSize {
		end := min(i+c.batchSize, total)
		results := c.runBatch(ctx, snapshot[i:end])

		now := time.Now().UTC()
		mu.Lock()
		for j, status := range results {
			channels[i+j].Status = status
			channels[i+j].CheckedAt = &now
		}
		mu.Unlock()

		batchIdx++
		CheckBatches.Inc()
		if c.progress != nil {
			c.progress(batchIdx, totalBatches)
		}
	}

	mu.Lock()
	copy(channels, filter.SortOnlineFirst(channels))
	online, offline := filter.Counts(channels)
	mu.Unlock()

	elapsed := time.Since(start)
	CheckDuration.Observe(elapsed.Seconds())
	log.Printf("checker: %d channels, %d online, %d offline, %d batches in %s",
		total, online, offline, totalBatches, elapsed.Round(time.Millisecond))

	return Summary{
		Total:    total,
		Online:   online,
		Offline:  offline,
		Batches:  totalBatches,
		Duration: elapsed,
		Strategy: c.strategy.Name(),
	}
}

// runBatch probes every channel of the batch concurrently and waits for all
// of them. A probe failure never cancels its siblings.
func (c *Checker) runBatch(ctx context.Context, batch []models.Channel) []models.Status {
	results := make([]models.Status, len(batch))
	var g errgroup.Group
	for j := range batch {
		g.Go(func() error {
			results[j] = c.probe(ctx, &batch[j])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Checker) probe(ctx context.Context, ch *models.Channel) models.Status {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	outcome := c.prober.Probe(pctx, ch)
	if outcome.Err == nil && pctx.Err() != nil {
		outcome.Err = pctx.Err()
	}
	status := c.strategy.Classify(outcome)
	ProbesTotal.WithLabelValues(string(status)).Inc()
	return status
}
