package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu     sync.Mutex
	waits  []error
	active []int
}

func (o *recordingObserver) SlotWaited(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.waits = append(o.waits, err)
}

func (o *recordingObserver) SlotsActive(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = append(o.active, n)
}

func TestRenderLimiter_BasicAcquireRelease(t *testing.T) {
	limiter := NewRenderLimiter(2, time.Second)
	ctx := context.Background()

	if got := limiter.Available(); got != 2 {
		t.Errorf("initial Available = %d, want 2", got)
	}

	release, err := limiter.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if got := limiter.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount = %d, want 1", got)
	}
	if got := limiter.Available(); got != 1 {
		t.Errorf("Available = %d, want 1", got)
	}

	release()
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount after release = %d, want 0", got)
	}
}

func TestRenderLimiter_ReleaseIsIdempotent(t *testing.T) {
	limiter := NewRenderLimiter(1, time.Second)

	release, err := limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	release()
	release()

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
	if got := limiter.Available(); got != 1 {
		t.Errorf("Available = %d, want 1", got)
	}
}

func TestRenderLimiter_TimeoutWhenFull(t *testing.T) {
	limiter := NewRenderLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	release, err := limiter.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	start := time.Now()
	_, err = limiter.Acquire(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTooManyRenders) {
		t.Errorf("Acquire error = %v, want ErrTooManyRenders", err)
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("Acquire returned after %v, expected to wait for maxWait", elapsed)
	}
	if got := limiter.Status().Rejected; got != 1 {
		t.Errorf("Rejected = %d, want 1", got)
	}
}

func TestRenderLimiter_ErrorMapsToBusyCode(t *testing.T) {
	if got := MapError(ErrTooManyRenders).Code; got != "EXP002" {
		t.Errorf("MapError(ErrTooManyRenders).Code = %q, want EXP002", got)
	}
}

func TestRenderLimiter_NeverExceedsMax(t *testing.T) {
	const maxConcurrent = 3
	limiter := NewRenderLimiter(maxConcurrent, 5*time.Second)

	var (
		mu          sync.Mutex
		current     int
		maxObserved int
		wg          sync.WaitGroup
	)

	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := limiter.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer release()

			mu.Lock()
			current++
			if current > maxObserved {
				maxObserved = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("exceeded max concurrent: observed %d, max %d", maxObserved, maxConcurrent)
	}
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
}

func TestRenderLimiter_ContextCancellation(t *testing.T) {
	limiter := NewRenderLimiter(1, 5*time.Second)

	release, err := limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := limiter.Acquire(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if got := limiter.Status().Waiting; got != 1 {
		t.Errorf("Waiting = %d, want 1", got)
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after context cancellation")
	}

	status := limiter.Status()
	if status.Waiting != 0 || status.Rejected != 0 {
		t.Errorf("Status = %+v, want no waiters and no rejections", status)
	}
}

func TestRenderLimiter_Observer(t *testing.T) {
	obs := &recordingObserver{}
	limiter := NewRenderLimiter(1, 20*time.Millisecond).WithObserver(obs)

	release, err := limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := limiter.Acquire(context.Background()); !errors.Is(err, ErrTooManyRenders) {
		t.Fatalf("second Acquire error = %v, want ErrTooManyRenders", err)
	}
	release()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.waits) != 2 || obs.waits[0] != nil || !errors.Is(obs.waits[1], ErrTooManyRenders) {
		t.Errorf("waits = %v, want [<nil> ErrTooManyRenders]", obs.waits)
	}
	if len(obs.active) != 2 || obs.active[0] != 1 || obs.active[1] != 0 {
		t.Errorf("active = %v, want [1 0]", obs.active)
	}
}

func TestRenderLimiter_WaitForDrain(t *testing.T) {
	limiter := NewRenderLimiter(2, time.Second)
	ctx := context.Background()

	first, _ := limiter.Acquire(ctx)
	second, _ := limiter.Acquire(ctx)

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- limiter.WaitForDrain(context.Background())
	}()

	select {
	case <-drainDone:
		t.Fatal("WaitForDrain returned while renders were active")
	case <-time.After(50 * time.Millisecond):
	}

	first()
	select {
	case <-drainDone:
		t.Fatal("WaitForDrain returned with one render still active")
	case <-time.After(20 * time.Millisecond):
	}
	second()

	select {
	case err := <-drainDone:
		if err != nil {
			t.Errorf("WaitForDrain returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not complete after all released")
	}
}

func TestRenderLimiter_WaitForDrain_Idle(t *testing.T) {
	limiter := NewRenderLimiter(1, time.Second)

	if err := limiter.WaitForDrain(context.Background()); err != nil {
		t.Errorf("WaitForDrain on idle limiter = %v, want nil", err)
	}

	release, _ := limiter.Acquire(context.Background())
	release()
	if err := limiter.WaitForDrain(context.Background()); err != nil {
		t.Errorf("WaitForDrain after release = %v, want nil", err)
	}
}

func TestRenderLimiter_WaitForDrain_ContextCancelled(t *testing.T) {
	limiter := NewRenderLimiter(1, time.Second)
	release, _ := limiter.Acquire(context.Background())
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRenderLimiter_Status(t *testing.T) {
	limiter := NewRenderLimiter(3, time.Second)

	status := limiter.Status()
	if status.Active != 0 || status.Available != 3 || status.MaxConcurrent != 3 {
		t.Errorf("initial Status = %+v, want {0 3 3}", status)
	}

	release, _ := limiter.Acquire(context.Background())
	status = limiter.Status()
	if status.Active != 1 {
		t.Errorf("Active = %d, want 1", status.Active)
	}
	if status.Available != 2 {
		t.Errorf("Available = %d, want 2", status.Available)
	}
	release()
}

func TestRenderLimiter_DefaultValues(t *testing.T) {
	limiter := NewRenderLimiter(0, 0)

	if got := limiter.Status().MaxConcurrent; got != DefaultMaxConcurrentRenders {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentRenders)
	}
	if limiter.maxWait != DefaultMaxWaitTime {
		t.Errorf("maxWait = %v, want %v", limiter.maxWait, DefaultMaxWaitTime)
	}
}
