package service

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalDisputeLockerSerializes(t *testing.T) {
	locker := NewLocalDisputeLocker()
	ctx := context.Background()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, "dispute-1")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			defer release()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", max)
	}
}

func TestLocalDisputeLockerIndependentDisputes(t *testing.T) {
	locker := NewLocalDisputeLocker()
	ctx := context.Background()

	releaseA, err := locker.Lock(ctx, "dispute-a")
	if err != nil {
		t.Fatalf("Lock a: %v", err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := locker.Lock(ctx, "dispute-b")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different dispute blocked")
	}
}
