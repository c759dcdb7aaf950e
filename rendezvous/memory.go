package rendezvous

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Memory is an in-process store for groups that live inside a single
// runtime (simulation, tests). Get blocks on a condition variable instead
// of polling.
type Memory struct {
	lock        sync.Mutex
	cond        *sync.Cond
	data        map[string][]byte
	waitTimeout time.Duration
}

func NewMemoryStore(waitTimeout time.Duration) *Memory {
	m := &Memory{
		data:        make(map[string][]byte),
		waitTimeout: waitTimeout,
	}
	m.cond = sync.NewCond(&m.lock)
	return m
}

func (m *Memory) Set(key string, value []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	m.cond.Broadcast()
	return nil
}

func (m *Memory) Get(key string) ([]byte, error) {
	deadline := time.Now().Add(m.waitTimeout)
	timedOut := false
	timer := time.AfterFunc(m.waitTimeout, func() {
		m.lock.Lock()
		timedOut = true
		m.lock.Unlock()
		m.cond.Broadcast()
	})
	defer timer.Stop()

	m.lock.Lock()
	defer m.lock.Unlock()
	for {
		if value, ok := m.data[key]; ok {
			return value, nil
		}
		if timedOut || !time.Now().Before(deadline) {
			return nil, errors.Errorf(
				"Timeout waiting for rendezvous key: %v.", key)
		}
		m.cond.Wait()
	}
}
