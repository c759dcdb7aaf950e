package rpc

import (
	"sync"
	"testing"
	"time"
)

func TestFutureFulfill(t *testing.T) {
	fut := newFuture(1)
	if fut.Done() {
		t.Error("Fresh future shouldn't be done.")
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		fut.fulfill(42)
	}()
	result, err := fut.Wait()
	if err != nil {
		t.Fatalf("Shouldn't be an error: %v", err)
	}
	if result.(int) != 42 {
		t.Errorf("Wait returned %v; want 42", result)
	}
	if !fut.Done() {
		t.Error("Future should be done after Wait.")
	}
}

func TestFutureSettlesOnce(t *testing.T) {
	fut := newFuture(2)
	fut.fulfill(1)
	fut.fulfill(2)
	fut.fail(ErrNotInitialized)
	result, err := fut.Wait()
	if err != nil || result.(int) != 1 {
		t.Errorf("Terminal state mutated: result %v, err %v", result, err)
	}
}

func TestFutureManyWaiters(t *testing.T) {
	fut := newFuture(3)
	const waiters = 8
	var wg sync.WaitGroup
	results := make([]interface{}, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = fut.Wait()
		}(i)
	}
	fut.fulfill("done")
	wg.Wait()
	for i, r := range results {
		if r.(string) != "done" {
			t.Errorf("Waiter %v observed %v", i, r)
		}
	}
}

func TestFutureFailure(t *testing.T) {
	fut := newFuture(4)
	fut.fail(&RemoteError{Kind: "ValueError", Message: "nope"})
	if _, err := fut.Wait(); err == nil {
		t.Error("Wait should surface the failure.")
	}
}
