package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clawinfra/growthkernel/internal/types"
)

func TestValidateRejectsSixFieldCron(t *testing.T) {
	cfg := JobConfig{ID: "j1", Cron: "0 0 6 * * *", Fn: func(ctx context.Context) error { return nil }}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected 6-field cron to be rejected")
	}
}

func TestValidateAcceptsFiveFieldCron(t *testing.T) {
	cfg := JobConfig{ID: "j1", Cron: "0 6 * * *", Fn: func(ctx context.Context) error { return nil }}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid 5-field cron, got %v", err)
	}
}

func TestTriggerNowRunsAndRecordsSuccess(t *testing.T) {
	s := New(nil)
	var calls int32
	err := s.AddJob(JobConfig{
		ID:   "p0_daily_sync",
		Cron: "0 6 * * *",
		Fn:   func(ctx context.Context) error { atomic.AddInt32(&calls, 1); return nil },
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	execID, err := s.TriggerNow(context.Background(), "p0_daily_sync")
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if execID == "" {
		t.Fatal("expected non-empty execution id")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected fn called once, got %d", calls)
	}

	history, err := s.History("p0_daily_sync")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Status != types.TriggerSuccess {
		t.Fatalf("expected 1 successful record, got %+v", history)
	}
}

func TestRetryLadderRetriesUntilSuccess(t *testing.T) {
	s := New(nil)
	var attempts int32
	err := s.AddJob(JobConfig{
		ID:         "flaky",
		Cron:       "0 6 * * *",
		RetryDelay: time.Millisecond,
		Fn: func(ctx context.Context) error {
			n := atomic.AddInt32(&attempts, 1)
			if n < 3 {
				return errors.New("transient failure")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if _, err := s.TriggerNow(context.Background(), "flaky"); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	history, _ := s.History("flaky")
	if len(history) != 1 || history[0].Status != types.TriggerSuccess {
		t.Fatalf("expected eventual success, got %+v", history)
	}
	if history[0].RetryCount != 2 {
		t.Fatalf("expected 2 retries before success, got %d", history[0].RetryCount)
	}
}

func TestRetryLadderFailsAfterMaxRetries(t *testing.T) {
	s := New(nil)
	err := s.AddJob(JobConfig{
		ID:         "alwaysfails",
		Cron:       "0 6 * * *",
		RetryDelay: time.Millisecond,
		MaxRetries: 2,
		Fn:         func(ctx context.Context) error { return errors.New("nope") },
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if _, err := s.TriggerNow(context.Background(), "alwaysfails"); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	history, _ := s.History("alwaysfails")
	if len(history) != 1 || history[0].Status != types.TriggerFailed {
		t.Fatalf("expected failed record, got %+v", history)
	}
	if history[0].RetryCount != 2 {
		t.Fatalf("expected RetryCount=2 (MaxRetries), got %d", history[0].RetryCount)
	}
}

func TestMaxConcurrentInstancesSkipsOverlap(t *testing.T) {
	s := New(nil)
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	err := s.AddJob(JobConfig{
		ID:   "slow",
		Cron: "0 6 * * *",
		Fn: func(ctx context.Context) error {
			started <- struct{}{}
			<-release
			return nil
		},
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]string, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		id, _ := s.TriggerNow(context.Background(), "slow")
		results[0] = id
	}()
	<-started
	go func() {
		defer wg.Done()
		id, _ := s.TriggerNow(context.Background(), "slow")
		results[1] = id
	}()

	time.Sleep(20 * time.Millisecond) // let the second call observe "running"
	close(release)
	wg.Wait()

	if results[0] == "" {
		t.Fatal("expected the first trigger to produce an execution id")
	}
	if results[1] != "" {
		t.Fatalf("expected the overlapping trigger to be skipped, got %q", results[1])
	}
}

func TestJobHealthStoppedThenUnknownThenHealthy(t *testing.T) {
	s := New(nil)
	err := s.AddJob(JobConfig{ID: "j", Cron: "0 6 * * *", Fn: func(ctx context.Context) error { return nil }})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if h, _ := s.JobHealth("j"); h != HealthStopped {
		t.Fatalf("expected stopped before Start, got %s", h)
	}

	s.Start(context.Background())
	defer s.Stop()

	if h, _ := s.JobHealth("j"); h != HealthUnknown {
		t.Fatalf("expected unknown before first success, got %s", h)
	}

	if _, err := s.TriggerNow(context.Background(), "j"); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if h, _ := s.JobHealth("j"); h != HealthHealthy {
		t.Fatalf("expected healthy immediately after success, got %s", h)
	}
}

// TestCatchUpCoalescesMissedFireOnce is the seed scenario from §8: a
// daily-06:00 job whose last expected fire has already passed (the
// process was down) runs exactly once on catch-up, not once per missed
// day.
func TestCatchUpCoalescesMissedFireOnce(t *testing.T) {
	s := New(nil)
	var calls int32
	err := s.AddJob(JobConfig{
		ID:   "p0_daily_sync",
		Cron: "0 6 * * *",
		Fn:   func(ctx context.Context) error { atomic.AddInt32(&calls, 1); return nil },
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.mu.Lock()
	j := s.jobs["p0_daily_sync"]
	s.mu.Unlock()
	j.mu.Lock()
	j.nextExpected = time.Now().Add(-28 * time.Hour) // yesterday's fire, long missed
	j.mu.Unlock()

	s.catchUp(context.Background(), j, time.Now())

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 coalesced catch-up run, got %d", calls)
	}

	j.mu.Lock()
	next := j.nextExpected
	j.mu.Unlock()
	if !next.After(time.Now()) {
		t.Fatalf("expected nextExpected advanced into the future, got %v", next)
	}

	// A second catch-up check at the same instant should not re-fire.
	s.catchUp(context.Background(), j, time.Now())
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected no additional fire, got %d calls", calls)
	}
}

func TestUpdateScheduleKeepsHistory(t *testing.T) {
	s := New(nil)
	if err := s.AddJob(JobConfig{ID: "j", Cron: "0 6 * * *", Fn: func(ctx context.Context) error { return nil }}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if _, err := s.TriggerNow(context.Background(), "j"); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if err := s.UpdateSchedule("j", "0 2 * * 0"); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}
	history, err := s.History("j")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected history preserved across UpdateSchedule, got %+v", history)
	}
}
