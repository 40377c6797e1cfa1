// Package scheduler runs the background work: due reply jobs and, when
// configured, periodic sweeps.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"whatsapp-assistant/internal/disposition"
	"whatsapp-assistant/internal/models"

	"golang.org/x/sync/errgroup"
)

// Engine is the part of the disposition engine the worker drives.
type Engine interface {
	DueReplyJobs(ctx context.Context, limit int) ([]models.ReplyJob, error)
	ProcessJob(ctx context.Context, job models.ReplyJob) (disposition.Outcome, error)
	RunSweep(ctx context.Context, action disposition.SweepAction) (disposition.SweepReport, error)
}

type Options struct {
	PollInterval  time.Duration
	Concurrency   int
	BatchSize     int
	SweepInterval time.Duration
}

type Worker struct {
	engine Engine
	opts   Options

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(engine Engine, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &Worker{engine: engine, opts: opts}
}

// Start launches the poll loop and, if a sweep interval is set, the sweep loop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		log.Println("Reply worker already running")
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)

	log.Printf("Polling reply jobs every %s (concurrency %d)", w.opts.PollInterval, w.opts.Concurrency)
	w.wg.Add(1)
	go w.runPeriodic(ctx, w.opts.PollInterval, func(ctx context.Context) { w.RunOnce(ctx) })

	if w.opts.SweepInterval > 0 {
		log.Printf("Running sweeps every %s", w.opts.SweepInterval)
		w.wg.Add(1)
		go w.runPeriodic(ctx, w.opts.SweepInterval, w.sweep)
	}
}

// Stop cancels the loops and waits for in-flight work to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	w.wg.Wait()
	log.Println("Reply worker stopped")
}

// RunOnce processes the currently due reply jobs and returns how many ran.
func (w *Worker) RunOnce(ctx context.Context) int {
	jobs, err := w.engine.DueReplyJobs(ctx, w.opts.BatchSize)
	if err != nil {
		log.Printf("Error loading due reply jobs: %v", err)
		return 0
	}

	var g errgroup.Group
	g.SetLimit(w.opts.Concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if _, err := w.engine.ProcessJob(ctx, job); err != nil {
				log.Printf("Error processing reply job %d: %v", job.ID, err)
			}
			return nil
		})
	}
	g.Wait()
	return len(jobs)
}

func (w *Worker) sweep(ctx context.Context) {
	for _, action := range []disposition.SweepAction{disposition.SweepUnanswered, disposition.SweepFollowUp} {
		if _, err := w.engine.RunSweep(ctx, action); err != nil {
			log.Printf("Error running %s sweep: %v", action, err)
		}
	}
}

func (w *Worker) runPeriodic(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
