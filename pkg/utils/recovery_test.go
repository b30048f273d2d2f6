package utils

import (
	"errors"
	"testing"
)

func TestRecoverWithCallback(t *testing.T) {
	t.Run("calls callback on panic", func(t *testing.T) {
		var capturedErr error
		fn := func() {
			defer RecoverWithCallback(func(err error) {
				capturedErr = err
			})
			panic("callback test")
		}

		fn()

		if capturedErr == nil {
			t.Fatal("expected callback to be called with error")
		}

		var panicErr *PanicError
		if !errors.As(capturedErr, &panicErr) {
			t.Fatalf("expected PanicError, got %T", capturedErr)
		}
		if panicErr.Value != "callback test" {
			t.Errorf("expected panic value 'callback test', got %v", panicErr.Value)
		}
		if panicErr.StackTrace == "" {
			t.Error("expected stack trace to be populated")
		}
	})

	t.Run("no callback when no panic", func(t *testing.T) {
		called := false
		fn := func() {
			defer RecoverWithCallback(func(error) { called = true })
		}

		fn()

		if called {
			t.Error("callback should not run without a panic")
		}
	})

	t.Run("nil callback tolerated", func(t *testing.T) {
		fn := func() {
			defer RecoverWithCallback(nil)
			panic("still recovered")
		}
		fn()
	})
}
