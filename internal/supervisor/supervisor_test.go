package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fedimint-observer/observer/internal/backoff"
)

func TestSuperviseRestartsOnErrorAndStopsOnCancel(t *testing.T) {
	s := &Supervisor{restartCounts: make(map[string]*atomic.Int64)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	done := make(chan struct{})

	go func() {
		s.supervise(ctx, "test-task", func(ctx context.Context) error {
			n := calls.Add(1)
			if n >= 3 {
				cancel()
				return errors.New("boom")
			}
			return errors.New("boom")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervise did not stop after context cancellation")
	}

	if calls.Load() < 3 {
		t.Errorf("expected at least 3 calls before cancellation, got %d", calls.Load())
	}
	if got := s.RestartCount("test-task"); got < 2 {
		t.Errorf("expected restart count >= 2, got %d", got)
	}
}

func TestBackoffDurationGrowsAndCaps(t *testing.T) {
	p := backoff.Policy{Base: 10 * time.Millisecond, Max: 100 * time.Millisecond, Factor: 2}
	d0 := p.Duration(0)
	d1 := p.Duration(1)
	d5 := p.Duration(5)
	if d0 <= 0 {
		t.Error("expected positive duration for attempt 0")
	}
	// attempt 0 lies in [8ms, 12ms) and attempt 1 in [16ms, 24ms) with jitter.
	if d1 <= d0 {
		t.Errorf("expected attempt 1 duration to exceed attempt 0, got %v <= %v", d1, d0)
	}
	if d5 > p.Max+p.Max/5 {
		t.Errorf("expected attempt 5 duration to respect the cap with jitter, got %v", d5)
	}
}
