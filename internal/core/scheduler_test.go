package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePurger struct {
	remaining int64
	calls     int
	cutoff    time.Time
	err       error
}

func (f *fakePurger) PurgeAudit(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	n := int64(limit)
	if f.remaining < n {
		n = f.remaining
	}
	f.remaining -= n
	return n, nil
}

func TestRunRetention(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		remaining int64
		batch     int
		wantTotal int64
		wantCalls int
	}{
		{"nothing to purge", 0, 10, 0, 1},
		{"single short batch", 7, 10, 7, 1},
		{"exact multiple needs one empty batch", 20, 10, 20, 3},
		{"several batches", 25, 10, 25, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePurger{remaining: tt.remaining}
			got := RunRetention(context.Background(), p, RetentionConfig{RetentionDays: 30, BatchSize: tt.batch}, now)
			if got != tt.wantTotal {
				t.Errorf("purged = %d, want %d", got, tt.wantTotal)
			}
			if p.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", p.calls, tt.wantCalls)
			}
			if want := now.AddDate(0, 0, -30); !p.cutoff.Equal(want) {
				t.Errorf("cutoff = %v, want %v", p.cutoff, want)
			}
		})
	}
}

func TestRunRetention_StopsOnError(t *testing.T) {
	p := &fakePurger{err: errors.New("connection reset")}
	if got := RunRetention(context.Background(), p, RetentionConfig{}, time.Now()); got != 0 {
		t.Errorf("purged = %d, want 0", got)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestStartRetentionScheduler_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakePurger{}

	done := make(chan struct{})
	go func() {
		StartRetentionScheduler(ctx, p, RetentionConfig{CheckInterval: time.Hour})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
