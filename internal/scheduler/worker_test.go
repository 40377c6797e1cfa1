package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"whatsapp-assistant/internal/disposition"
	"whatsapp-assistant/internal/models"
)

type fakeEngine struct {
	mu        sync.Mutex
	jobs      []models.ReplyJob
	processed []uint
	sweeps    []disposition.SweepAction
	inFlight  int32
	maxSeen   int32
}

func (f *fakeEngine) DueReplyJobs(context.Context, int) ([]models.ReplyJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	jobs := f.jobs
	f.jobs = nil
	return jobs, nil
}

func (f *fakeEngine) ProcessJob(_ context.Context, job models.ReplyJob) (disposition.Outcome, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	f.processed = append(f.processed, job.ID)
	f.mu.Unlock()
	return disposition.OutcomeSent, nil
}

func (f *fakeEngine) RunSweep(_ context.Context, action disposition.SweepAction) (disposition.SweepReport, error) {
	f.mu.Lock()
	f.sweeps = append(f.sweeps, action)
	f.mu.Unlock()
	return disposition.SweepReport{Action: action}, nil
}

func TestRunOnceRespectsConcurrency(t *testing.T) {
	eng := &fakeEngine{}
	for i := 1; i <= 10; i++ {
		eng.jobs = append(eng.jobs, models.ReplyJob{ID: uint(i)})
	}
	w := NewWorker(eng, Options{Concurrency: 3})

	if n := w.RunOnce(context.Background()); n != 10 {
		t.Fatalf("RunOnce = %d, want 10", n)
	}
	if len(eng.processed) != 10 {
		t.Errorf("processed %d jobs", len(eng.processed))
	}
	if peak := atomic.LoadInt32(&eng.maxSeen); peak > 3 {
		t.Errorf("max concurrency = %d, want <= 3", peak)
	}
}

func TestStartPollsAndSweeps(t *testing.T) {
	eng := &fakeEngine{jobs: []models.ReplyJob{{ID: 1}}}
	w := NewWorker(eng, Options{PollInterval: 5 * time.Millisecond, SweepInterval: 5 * time.Millisecond})
	w.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		eng.mu.Lock()
		done := len(eng.processed) == 1 && len(eng.sweeps) >= 2
		eng.mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker did not poll and sweep in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	w.Stop()

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.sweeps[0] != disposition.SweepUnanswered || eng.sweeps[1] != disposition.SweepFollowUp {
		t.Errorf("sweeps = %v", eng.sweeps)
	}
}
