package rpc

import (
	"sync"
)

// Future is the single-assignment completion handle returned by CallAsync.
// It settles exactly once; any number of waiters observe the same outcome.
type Future struct {
	requestID uint64
	done      chan struct{}
	once      sync.Once
	result    interface{}
	err       error
}

func newFuture(requestID uint64) *Future {
	return &Future{
		requestID: requestID,
		done:      make(chan struct{}),
	}
}

// Wait blocks until the future settles, then returns the remote result or
// the captured error. Waiting on an already settled future returns
// immediately.
func (f *Future) Wait() (interface{}, error) {
	<-f.done
	return f.result, f.err
}

// Done reports whether the future has settled, without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *Future) fulfill(result interface{}) {
	f.once.Do(func() {
		f.result = result
		close(f.done)
	})
}

func (f *Future) fail(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}
