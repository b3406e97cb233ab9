package safego

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func waitOrFail(t *testing.T, wg *sync.WaitGroup, msg string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error(msg)
	}
}

func TestGo_RunsFunction(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	Go(func() {
		defer wg.Done()
	})

	waitOrFail(t, &wg, "goroutine did not complete within timeout")
}

func TestGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	Go(func() {
		defer wg.Done()
		panic("intentional panic in test")
	})

	waitOrFail(t, &wg, "goroutine did not complete within timeout after panic")
}

func TestDo_ReturnsFunctionError(t *testing.T) {
	want := errors.New("boom")
	if err := Do(func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Do() = %v, want %v", err, want)
	}
	if err := Do(func() error { return nil }); err != nil {
		t.Errorf("Do() = %v, want nil", err)
	}
}

func TestDo_ConvertsPanicToError(t *testing.T) {
	err := Do(func() error {
		panic("intentional panic in test")
	})

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Do() = %v, want *PanicError", err)
	}
	if pe.Value != "intentional panic in test" {
		t.Errorf("PanicError.Value = %v", pe.Value)
	}
}
