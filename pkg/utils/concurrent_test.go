package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcurrentExecutor(t *testing.T) {
	t.Run("runs all functions and aligns errors", func(t *testing.T) {
		executor := NewConcurrentExecutor(4)
		boom := errors.New("boom")

		errs := executor.Execute(context.Background(),
			func() error { return nil },
			func() error { return boom },
			func() error { return nil },
		)

		if len(errs) != 3 {
			t.Fatalf("expected 3 error slots, got %d", len(errs))
		}
		if errs[0] != nil || errs[2] != nil {
			t.Errorf("expected nil for succeeding slots, got %v / %v", errs[0], errs[2])
		}
		if errs[1] != boom {
			t.Errorf("expected boom at index 1, got %v", errs[1])
		}
	})

	t.Run("bounds concurrency", func(t *testing.T) {
		executor := NewConcurrentExecutor(2)
		var active, peak int64

		fns := make([]func() error, 8)
		for i := range fns {
			fns[i] = func() error {
				n := atomic.AddInt64(&active, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&active, -1)
				return nil
			}
		}

		executor.Execute(context.Background(), fns...)

		if got := atomic.LoadInt64(&peak); got > 2 {
			t.Errorf("expected at most 2 concurrent functions, observed %d", got)
		}
	})

	t.Run("recovers panics into PanicError", func(t *testing.T) {
		executor := NewConcurrentExecutor(2)

		errs := executor.Execute(context.Background(),
			func() error { panic("worker exploded") },
			func() error { return nil },
		)

		var panicErr *PanicError
		if !errors.As(errs[0], &panicErr) {
			t.Fatalf("expected PanicError, got %v", errs[0])
		}
		if errs[1] != nil {
			t.Errorf("panic in one slot must not affect the other: %v", errs[1])
		}
	})

	t.Run("cancelled context fails pending slots", func(t *testing.T) {
		executor := NewConcurrentExecutor(1)
		ctx, cancel := context.WithCancel(context.Background())

		started := make(chan struct{})
		release := make(chan struct{})
		errs := make(chan []error, 1)
		go func() {
			errs <- executor.Execute(ctx,
				func() error { close(started); <-release; return nil },
				func() error { return nil },
			)
		}()

		<-started
		cancel()
		close(release)

		got := <-errs
		if got[0] != nil {
			t.Errorf("running function should finish normally, got %v", got[0])
		}
		if !errors.Is(got[1], context.Canceled) {
			t.Errorf("queued function should see context.Canceled, got %v", got[1])
		}
	})

	t.Run("empty input returns nil", func(t *testing.T) {
		if errs := NewConcurrentExecutor(2).Execute(context.Background()); errs != nil {
			t.Errorf("expected nil, got %v", errs)
		}
	})
}

func TestExecuteWithResults(t *testing.T) {
	boom := errors.New("boom")

	results, errs := ExecuteWithResults(context.Background(), 3,
		func() (int, error) { return 10, nil },
		func() (int, error) { return 0, boom },
		func() (int, error) { return 30, nil },
	)

	if results[0] != 10 || results[2] != 30 {
		t.Errorf("unexpected results: %v", results)
	}
	if errs[0] != nil || errs[2] != nil {
		t.Errorf("unexpected errors: %v", errs)
	}
	if errs[1] != boom {
		t.Errorf("expected boom at index 1, got %v", errs[1])
	}
}

func TestWorkerPool(t *testing.T) {
	t.Run("index alignment preserved", func(t *testing.T) {
		pool := NewWorkerPool(4, func(ctx context.Context, item int) (int, error) {
			if item == 3 {
				return 0, errors.New("bad item")
			}
			return item * 2, nil
		})

		items := []int{0, 1, 2, 3, 4, 5}
		results, errs := pool.ProcessItems(context.Background(), items)

		for i, item := range items {
			if item == 3 {
				if errs[i] == nil {
					t.Errorf("expected error at index %d", i)
				}
				continue
			}
			if errs[i] != nil {
				t.Errorf("unexpected error at index %d: %v", i, errs[i])
			}
			if results[i] != item*2 {
				t.Errorf("results[%d] = %d, want %d", i, results[i], item*2)
			}
		}
	})

	t.Run("panicking item does not abort siblings", func(t *testing.T) {
		pool := NewWorkerPool(2, func(ctx context.Context, item int) (int, error) {
			if item == 1 {
				panic("bad item")
			}
			return item, nil
		})

		results, errs := pool.ProcessItems(context.Background(), []int{0, 1, 2})

		var panicErr *PanicError
		if !errors.As(errs[1], &panicErr) {
			t.Fatalf("expected PanicError at index 1, got %v", errs[1])
		}
		if errs[0] != nil || errs[2] != nil {
			t.Errorf("siblings should succeed: %v", errs)
		}
		if results[0] != 0 || results[2] != 2 {
			t.Errorf("unexpected results: %v", results)
		}
	})

	t.Run("empty items returns nil", func(t *testing.T) {
		pool := NewWorkerPool(2, func(ctx context.Context, item int) (int, error) {
			return item, nil
		})
		results, errs := pool.ProcessItems(context.Background(), nil)
		if results != nil || errs != nil {
			t.Errorf("expected nil/nil, got %v / %v", results, errs)
		}
	})
}
