package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/voyagen/streamscout/internal/cache"
	"github.com/voyagen/streamscout/internal/checker"
	"github.com/voyagen/streamscout/internal/fetcher"
	"github.com/voyagen/streamscout/internal/store"
)

// Dispatcher runs source jobs either through the Redis queue or inline.
type Dispatcher struct {
	Store   store.Store
	Fetcher *fetcher.Fetcher
	Checker *checker.Checker
	Redis   *cache.Redis // nil = run jobs synchronously
	Queue   string
}

// Queued reports whether Submit hands jobs to a background worker.
func (d *Dispatcher) Queued() bool {
	return d.Redis != nil
}

func (d *Dispatcher) queue() string {
	if d.Queue != "" {
		return d.Queue
	}
	return cache.DefaultQueue
}

// Submit enqueues job when Redis is configured; otherwise it runs the job
// and returns its error.
func (d *Dispatcher) Submit(ctx context.Context, job cache.CheckJob) error {
	if d.Redis != nil {
		if err := cache.Enqueue(ctx, d.Redis, d.queue(), job); err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}
		return nil
	}
	return d.Handle(ctx, job)
}

// Handle executes one job.
func (d *Dispatcher) Handle(ctx context.Context, job cache.CheckJob) error {
	switch job.Kind {
	case cache.JobRefresh:
		if _, err := Refresh(ctx, d.Store, d.Fetcher, job.SourceID); err != nil {
			return fmt.Errorf("refresh source %d: %w", job.SourceID, err)
		}
		fallthrough
	case cache.JobCheck:
		if _, err := CheckSource(ctx, d.Store, d.Checker, d.Redis, job.SourceID); err != nil {
			return fmt.Errorf("check source %d: %w", job.SourceID, err)
		}
		return nil
	}
	return fmt.Errorf("unknown job kind %q", job.Kind)
}

// CheckEnabledSources submits a check job for every enabled source. It is
// the cron entry point.
func (d *Dispatcher) CheckEnabledSources(ctx context.Context) {
	sources, err := d.Store.ListSources(ctx)
	if err != nil {
		log.Printf("scheduler: list sources: %v", err)
		return
	}
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		job := cache.CheckJob{Kind: cache.JobCheck, SourceID: src.ID, SourceName: src.Name}
		if err := d.Submit(ctx, job); err != nil {
			log.Printf("scheduler: source %d: %v", src.ID, err)
		}
	}
}

// RunWorker dequeues jobs until ctx is cancelled.
func (d *Dispatcher) RunWorker(ctx context.Context) {
	if d.Redis == nil {
		return
	}
	log.Println("check worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("check worker stopping")
			return
		default:
		}

		job, err := cache.Dequeue(ctx, d.Redis, d.queue(), 5*time.Second)
		if err != nil {
			log.Printf("check worker: dequeue error: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue
		}

		log.Printf("check worker: processing %s job source_id=%d source=%q", job.Kind, job.SourceID, job.SourceName)
		if err := d.Handle(ctx, *job); err != nil {
			log.Printf("check worker: %v", err)
		}
	}
}
