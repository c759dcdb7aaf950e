/*
 * Project: rpc-lite
 * ---------------------
 * Authors:
 *   Minjian Chen 813534
 *   Shijie Liu   813277
 *   Weizhi Xu    752454
 *   Wenqing Xue  813044
 *   Zijun Chen   813190
 */

// Package rpc implements the per-process RPC agent: group formation over a
// rendezvous store, dispatch of registered callables to named workers,
// futures for async calls, a caller-side barrier and a symmetric graceful
// shutdown.
package rpc

import (
	"strconv"
	"sync"
	"time"

	"github.com/PwzXxm/rpc-lite/rendezvous"
	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

type lifecycleState int

const (
	stateUninit lifecycleState = iota
	stateForming
	stateActive
	stateDraining
	stateClosed
)

const DefaultPoolSize = 16

// WorkerName derives the addressing key of a rank. The mapping is
// bijective within a group.
func WorkerName(rank int) rpccore.NodeID {
	return rpccore.NodeID("worker" + strconv.Itoa(rank))
}

// Agent owns one worker's RPC state: the group view, the pending-request
// table and the inbound execution pool. Lifecycle is Uninit -> Active ->
// Draining -> Closed, owned by the instance so several agents can coexist
// in one runtime.
type Agent struct {
	mutex deadlock.Mutex
	cond  *sync.Cond // pending drain + leave barrier

	state     lifecycleState
	rank      int
	worldSize int
	name      rpccore.NodeID

	node    rpccore.Node
	network rpccore.Network

	view          map[rpccore.NodeID]bool
	nextRequestID uint64
	pending       map[uint64]*Future
	peersLeft     map[rpccore.NodeID]bool

	// 0 means Join waits for in-flight responses without bound
	drainTimeout time.Duration

	exec   *pool.Pool
	execWG sync.WaitGroup
	logger *logrus.Entry
}

// NewAgent wraps a transport node into an agent. The agent starts in the
// uninitialized state; Init must be called before any dispatch.
func NewAgent(node rpccore.Node, network rpccore.Network, logger *logrus.Entry, poolSize int) *Agent {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	a := &Agent{
		state:     stateUninit,
		node:      node,
		network:   network,
		view:      make(map[rpccore.NodeID]bool),
		pending:   make(map[uint64]*Future),
		peersLeft: make(map[rpccore.NodeID]bool),
		exec:      pool.New().WithMaxGoroutines(poolSize),
		logger:    logger,
	}
	a.cond = sync.NewCond(&a.mutex)
	node.RegisterRawRequestCallback(a.handleRequestAndLogError)
	return a
}

// Init forms the group: publishes this worker's address under its name,
// blocks until every member of the group is resolvable through the store,
// and binds the peers into the transport. Must be called exactly once.
func (a *Agent) Init(rank, worldSize int, store rendezvous.Store, advertiseAddr string) error {
	if rank < 0 || rank >= worldSize {
		return errors.Errorf("Rank %v out of range for world size %v.", rank, worldSize)
	}

	a.mutex.Lock()
	if a.state != stateUninit {
		a.mutex.Unlock()
		return errors.New("RPC has already been initialized")
	}
	// claim the lifecycle before formation so a concurrent Init fails fast
	a.state = stateForming
	a.rank = rank
	a.worldSize = worldSize
	a.name = WorkerName(rank)
	a.mutex.Unlock()

	// release the claim if formation fails partway
	fail := func(err error) error {
		a.mutex.Lock()
		a.state = stateUninit
		a.mutex.Unlock()
		return err
	}

	if err := store.Set(string(a.name), []byte(advertiseAddr)); err != nil {
		return fail(errors.Wrapf(err, "Unable to register %v in the rendezvous store", a.name))
	}

	view := make(map[rpccore.NodeID]bool, worldSize)
	for r := 0; r < worldSize; r++ {
		peer := WorkerName(r)
		view[peer] = true
		if r == rank {
			continue
		}
		addr, err := store.Get(string(peer))
		if err != nil {
			return fail(errors.Wrapf(err, "Unable to resolve %v during group formation", peer))
		}
		if err := a.network.NewRemoteNode(peer, string(addr)); err != nil {
			return fail(err)
		}
	}

	a.mutex.Lock()
	a.view = view
	a.state = stateActive
	a.mutex.Unlock()
	a.logger.Infof("RPC initialized. rank: %v, world size: %v", rank, worldSize)
	return nil
}

// Call invokes ref on the target worker and blocks until the result (or
// the remote error) is back.
func (a *Agent) Call(target rpccore.NodeID, ref CallRef,
	args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	fut, err := a.CallAsync(target, ref, args, kwargs)
	if err != nil {
		return nil, err
	}
	return fut.Wait()
}

// CallAsync issues the call and returns its future without blocking; the
// send itself happens off the caller's goroutine. All outcomes, including
// transport failures, surface at Wait.
func (a *Agent) CallAsync(target rpccore.NodeID, ref CallRef,
	args []interface{}, kwargs map[string]interface{}) (*Future, error) {
	a.mutex.Lock()
	if a.state != stateActive {
		a.mutex.Unlock()
		return nil, ErrNotInitialized
	}
	if !a.view[target] {
		a.mutex.Unlock()
		return nil, errors.Errorf("Unknown target worker: %v.", target)
	}
	id := a.nextRequestID
	a.nextRequestID++
	fut := newFuture(id)
	a.pending[id] = fut
	source := a.name
	a.mutex.Unlock()

	req := callReq{RequestID: id, Source: source, Ref: ref, Args: args, Kwargs: kwargs}
	go func() {
		data, err := encodeMsg(req)
		if err == nil {
			// the reply is just the listener's ack; the result arrives
			// later as a response message
			_, err = a.node.SendRawRequest(target, rpcMethodCall, data)
		}
		if err != nil {
			a.logger.Tracef("RPC call failed. \n target: %v, ref: %v, err: %v",
				target, ref, err)
			a.settle(id, nil, err)
		}
	}()
	return fut, nil
}

// Sync blocks until every RPC issued by this worker so far has completed.
// It is the only ordering primitive; calls issued afterwards are not
// affected.
func (a *Agent) Sync() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.state != stateActive {
		return ErrNotInitialized
	}
	for len(a.pending) > 0 {
		a.cond.Wait()
	}
	return nil
}

// Join drains this worker's outstanding calls, announces the departure to
// every peer and blocks until all group members have done the same.
// Inbound requests are still served while draining so peers can finish
// their own calls. Idempotent; calls after the first are no-ops.
func (a *Agent) Join() error {
	a.mutex.Lock()
	switch a.state {
	case stateUninit, stateForming:
		a.mutex.Unlock()
		return ErrNotInitialized
	case stateClosed:
		a.mutex.Unlock()
		return nil
	case stateDraining:
		// another Join is in flight; wait for it to finish
		for a.state != stateClosed {
			a.cond.Wait()
		}
		a.mutex.Unlock()
		return nil
	}
	a.state = stateDraining
	a.logger.Info("Draining outstanding RPCs ...")
	expired := false
	if a.drainTimeout > 0 {
		timer := time.AfterFunc(a.drainTimeout, func() {
			a.mutex.Lock()
			expired = true
			a.cond.Broadcast()
			a.mutex.Unlock()
		})
		defer timer.Stop()
	}
	for len(a.pending) > 0 && !expired {
		a.cond.Wait()
	}
	// responses that never came must fail their futures instead of
	// hanging waiters forever
	for id, fut := range a.pending {
		delete(a.pending, id)
		fut.fail(ErrLostResponse)
	}
	name := a.name
	peers := make([]rpccore.NodeID, 0, a.worldSize-1)
	for peer := range a.view {
		if peer != name {
			peers = append(peers, peer)
		}
	}
	a.mutex.Unlock()

	data, err := encodeMsg(leaveReq{Source: name})
	if err != nil {
		return err
	}
	for _, peer := range peers {
		if _, err := a.node.SendRawRequest(peer, rpcMethodLeave, data); err != nil {
			a.logger.Debugf("Leave announcement to %v failed: %v", peer, err)
		}
	}

	a.mutex.Lock()
	for len(a.peersLeft) < a.worldSize-1 {
		a.cond.Wait()
	}
	a.state = stateClosed
	a.cond.Broadcast()
	a.mutex.Unlock()

	// every execution admitted before the state flip has finished once
	// execWG drains, so no new task can reach the pool after Wait
	a.execWG.Wait()
	a.exec.Wait()
	a.logger.Info("RPC group joined.")
	return nil
}

// SetDrainTimeout bounds how long Join waits for outstanding responses
// before failing their futures with ErrLostResponse. Zero, the default,
// waits without bound.
func (a *Agent) SetDrainTimeout(d time.Duration) {
	a.mutex.Lock()
	a.drainTimeout = d
	a.mutex.Unlock()
}

// Rank returns this worker's rank. Only meaningful after Init.
func (a *Agent) Rank() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.rank
}

func (a *Agent) Name() rpccore.NodeID {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.name
}

func (a *Agent) WorldSize() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.worldSize
}

// settle resolves a pending future and wakes anyone blocked in Sync or
// Join on the drain condition.
func (a *Agent) settle(id uint64, result interface{}, err error) {
	a.mutex.Lock()
	fut, ok := a.pending[id]
	if ok {
		delete(a.pending, id)
	}
	a.cond.Broadcast()
	a.mutex.Unlock()
	if !ok {
		a.logger.Debugf("Response for unknown request id: %v", id)
		return
	}
	if err != nil {
		fut.fail(err)
	} else {
		fut.fulfill(result)
	}
}
