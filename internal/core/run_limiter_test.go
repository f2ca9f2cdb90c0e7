package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunLimiter_AcquireRelease(t *testing.T) {
	limiter := NewRunLimiter(2, time.Second)
	ctx := context.Background()

	if got := limiter.Status(); got != (RunLimiterStatus{Active: 0, Available: 2, MaxConcurrent: 2}) {
		t.Errorf("initial Status = %+v", got)
	}

	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire #%d failed: %v", i+1, err)
		}
	}
	if got := limiter.Active(); got != 2 {
		t.Errorf("Active = %d, want 2", got)
	}
	if limiter.TryAcquire() {
		t.Error("TryAcquire succeeded with every slot taken")
	}

	limiter.Release()
	if got := limiter.Status().Available; got != 1 {
		t.Errorf("Available after Release = %d, want 1", got)
	}
	if !limiter.TryAcquire() {
		t.Error("TryAcquire failed with a free slot")
	}

	limiter.Release()
	limiter.Release()
	if got := limiter.Active(); got != 0 {
		t.Errorf("Active after releasing all = %d, want 0", got)
	}
}

func TestRunLimiter_WaitTimeout(t *testing.T) {
	limiter := NewRunLimiter(1, 20*time.Millisecond)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	defer limiter.Release()

	err := limiter.Acquire(context.Background())
	if !errors.Is(err, ErrTooManyRuns) {
		t.Errorf("Acquire error = %v, want %v", err, ErrTooManyRuns)
	}
}

func TestRunLimiter_ContextCancelled(t *testing.T) {
	limiter := NewRunLimiter(1, time.Minute)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire error = %v, want context.Canceled", err)
	}
}

func TestRunLimiter_WaitsForSlot(t *testing.T) {
	limiter := NewRunLimiter(1, time.Second)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire failed")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		limiter.Release()
	}()

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	limiter.Release()
}

func TestRunLimiter_Drain(t *testing.T) {
	limiter := NewRunLimiter(3, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		if err := limiter.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond)
			limiter.Release()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	wg.Wait()

	if got := limiter.Active(); got != 0 {
		t.Errorf("Active after Drain = %d, want 0", got)
	}
}

func TestRunLimiter_DrainTimeout(t *testing.T) {
	limiter := NewRunLimiter(1, time.Second)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRunLimiter_Defaults(t *testing.T) {
	limiter := NewRunLimiter(0, 0)
	if got := limiter.Status().MaxConcurrent; got != DefaultMaxConcurrentRuns {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentRuns)
	}
	if limiter.maxWait != DefaultMaxWait {
		t.Errorf("maxWait = %v, want %v", limiter.maxWait, DefaultMaxWait)
	}
}
