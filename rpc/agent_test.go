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

package rpc_test

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PwzXxm/rpc-lite/ops"
	"github.com/PwzXxm/rpc-lite/rendezvous"
	"github.com/PwzXxm/rpc-lite/rpc"
	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/PwzXxm/rpc-lite/tensor"
	"github.com/sirupsen/logrus"
)

// newGroup forms an n-worker group over an in-process channel network.
// The returned stop function joins every agent and shuts the network down.
func newGroup(t *testing.T, n int) ([]*rpc.Agent, func()) {
	t.Helper()
	network := rpccore.NewChanNetwork(5 * time.Second)
	store := rendezvous.NewMemoryStore(5 * time.Second)

	logger := logrus.New()
	logger.Out = os.Stdout
	logger.SetLevel(logrus.WarnLevel)

	agents := make([]*rpc.Agent, n)
	for i := 0; i < n; i++ {
		node, err := network.NewNode(rpc.WorkerName(i))
		if err != nil {
			t.Fatalf("Unable to create node: %v", err)
		}
		agents[i] = rpc.NewAgent(node, network, logger.WithFields(logrus.Fields{
			"worker": node.NodeID(),
		}), 0)
	}

	// Init blocks until every member has registered, run them together
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, a := range agents {
		wg.Add(1)
		go func(i int, a *rpc.Agent) {
			defer wg.Done()
			errs[i] = a.Init(i, n, store, string(rpc.WorkerName(i)))
		}(i, a)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Init failed for rank %v: %v", i, err)
		}
	}

	stop := func() {
		var wg sync.WaitGroup
		for _, a := range agents {
			wg.Add(1)
			go func(a *rpc.Agent) {
				defer wg.Done()
				_ = a.Join()
			}(a)
		}
		wg.Wait()
		network.Shutdown()
	}
	return agents, stop
}

func checkCallNoError(t *testing.T, result interface{}, err error) interface{} {
	t.Helper()
	if err != nil {
		t.Fatalf("Shouldn't be an error: %v", err)
	}
	return result
}

func TestBlockingCall(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()

	a := tensor.Ones(2, 3, 4)
	b := tensor.Full(2, 2, 3, 4)
	want, _ := tensor.Add(a, b)

	result, err := agents[0].Call(rpc.WorkerName(1), rpc.Function("tensor.add"),
		[]interface{}{a, b}, nil)
	got := checkCallNoError(t, result, err).(tensor.Tensor)
	if !tensor.Equal(got, want) {
		t.Errorf("Remote add differs from local add: %v, want %v", got, want)
	}
}

func TestAsyncMatchesBlocking(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()

	target := rpc.WorkerName(1)
	ref := rpc.Function("tensor.add_scalar")
	args := []interface{}{tensor.Zeros(3, 3), 1.5}

	fut, err := agents[0].CallAsync(target, ref, args, nil)
	if err != nil {
		t.Fatalf("CallAsync failed: %v", err)
	}
	asyncResult, err := fut.Wait()
	got := checkCallNoError(t, asyncResult, err).(tensor.Tensor)

	blockingResult, err := agents[0].Call(target, ref, args, nil)
	want := checkCallNoError(t, blockingResult, err).(tensor.Tensor)

	if !tensor.Equal(got, want) {
		t.Errorf("Async result %v differs from blocking result %v", got, want)
	}
	if !fut.Done() {
		t.Error("Future should report done after Wait.")
	}
}

func TestKeywordArguments(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()

	result, err := agents[0].Call(rpc.WorkerName(1), rpc.Function("linear"),
		[]interface{}{2.0}, map[string]interface{}{"w": 3.0, "b": 1.0})
	got := checkCallNoError(t, result, err).(float64)
	if got != 7.0 {
		t.Errorf("linear(2, w=3, b=1) = %v; want 7", got)
	}
}

func TestVariadicCall(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()

	result, err := agents[0].Call(rpc.WorkerName(1), rpc.Function("min"),
		[]interface{}{4, 2, 9, 7}, nil)
	if got := checkCallNoError(t, result, err).(int); got != 2 {
		t.Errorf("min(4, 2, 9, 7) = %v; want 2", got)
	}
}

func TestCallableKinds(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()
	target := rpc.WorkerName(1)

	// constructor returns the instance to the origin
	result, err := agents[0].Call(target, rpc.Constructor("Counter"),
		[]interface{}{41}, nil)
	c := checkCallNoError(t, result, err).(*ops.Counter)
	if c.Value != 41 {
		t.Errorf("Constructed counter value is %v; want 41", c.Value)
	}

	// bound method runs on an instance rebuilt from the ctor args
	result, err = agents[0].Call(target, rpc.BoundMethod("Counter", "Incr", 40),
		[]interface{}{2}, nil)
	if got := checkCallNoError(t, result, err).(int); got != 42 {
		t.Errorf("Counter(40).Incr(2) = %v; want 42", got)
	}

	// keyword binding on a bound method
	result, err = agents[0].Call(target, rpc.BoundMethod("Counter", "Incr", 10),
		nil, map[string]interface{}{"by": 5})
	if got := checkCallNoError(t, result, err).(int); got != 15 {
		t.Errorf("Counter(10).Incr(by=5) = %v; want 15", got)
	}

	// class method, no instantiation
	result, err = agents[0].Call(target, rpc.ClassMethod("Counter", "FromPair"),
		[]interface{}{20, 22}, nil)
	c = checkCallNoError(t, result, err).(*ops.Counter)
	if c.Value != 42 {
		t.Errorf("Counter.FromPair(20, 22).Value = %v; want 42", c.Value)
	}

	// static method
	result, err = agents[0].Call(target, rpc.StaticMethod("Counter", "Describe"),
		[]interface{}{3}, nil)
	if got := checkCallNoError(t, result, err).(string); got != "Counter(3)" {
		t.Errorf("Describe(3) = %q; want %q", got, "Counter(3)")
	}
}

func TestRemoteErrorPropagation(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()
	target := rpc.WorkerName(1)

	_, err := agents[0].Call(target, rpc.Function("raise.value"),
		[]interface{}{"bad input"}, nil)
	if err == nil || !strings.Contains(err.Error(), "ValueError") {
		t.Errorf("Expected ValueError in %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "bad input") {
		t.Errorf("Remote message lost: %v", err)
	}

	// arity mismatch
	_, err = agents[0].Call(target, rpc.Function("linear"),
		[]interface{}{1.0}, nil)
	if err == nil || !strings.Contains(err.Error(), "TypeError") {
		t.Errorf("Expected TypeError in %v", err)
	}

	// unexpected keyword
	_, err = agents[0].Call(target, rpc.Function("linear"),
		[]interface{}{1.0, 2.0, 3.0}, map[string]interface{}{"gamma": 1.0})
	if err == nil || !strings.Contains(err.Error(), "TypeError") {
		t.Errorf("Expected TypeError in %v", err)
	}

	// unknown symbol is an execution error, not a transport error
	_, err = agents[0].Call(target, rpc.Function("no.such.fn"), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "LookupError") {
		t.Errorf("Expected LookupError in %v", err)
	}

	// shape mismatch inside the callable
	_, err = agents[0].Call(target, rpc.Function("tensor.add"),
		[]interface{}{tensor.Ones(2, 2), tensor.Ones(3)}, nil)
	if err == nil || !strings.Contains(err.Error(), "ValueError") {
		t.Errorf("Expected ValueError in %v", err)
	}
}

func TestUnknownTargetFailsFast(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()

	_, err := agents[0].Call(rpccore.NodeID("worker9"), rpc.Function("noop"), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "worker9") {
		t.Errorf("Expected an addressing error naming the target, got %v", err)
	}

	_, err = agents[0].CallAsync(rpccore.NodeID("nope"), rpc.Function("noop"), nil, nil)
	if err == nil {
		t.Error("CallAsync should fail fast on an unknown target.")
	}
}

func TestNilRoundTrip(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()

	result, err := agents[0].Call(rpc.WorkerName(1), rpc.Function("echo"),
		[]interface{}{nil}, nil)
	checkCallNoError(t, result, err)
	if result != nil {
		t.Errorf("echo(nil) = %v; want nil", result)
	}
}

func TestConcurrentFutures(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()
	target := rpc.WorkerName(1)

	const calls = 25
	futs := make([]*rpc.Future, calls)
	for i := 0; i < calls; i++ {
		fut, err := agents[0].CallAsync(target, rpc.Function("echo"),
			[]interface{}{i}, nil)
		if err != nil {
			t.Fatalf("CallAsync %v failed: %v", i, err)
		}
		futs[i] = fut
	}
	for i, fut := range futs {
		result, err := fut.Wait()
		if got := checkCallNoError(t, result, err).(int); got != i {
			t.Errorf("Future %v resolved to %v; cross-talk between requests", i, got)
		}
	}
}

func TestSyncBarrier(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()
	target := rpc.WorkerName(1)

	base, err := agents[0].Call(target, rpc.Function("acc.get"), nil, nil)
	start := checkCallNoError(t, base, err).(int)

	for i := 0; i < 10; i++ {
		if _, err := agents[0].CallAsync(target, rpc.Function("acc.add"),
			[]interface{}{1}, nil); err != nil {
			t.Fatalf("CallAsync failed: %v", err)
		}
	}
	if err := agents[0].Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// the first batch's side effects must be visible now
	result, err := agents[0].Call(target, rpc.Function("acc.get"), nil, nil)
	if got := checkCallNoError(t, result, err).(int); got != start+10 {
		t.Errorf("Accumulator is %v after barrier; want %v", got, start+10)
	}

	// the barrier doesn't stop later calls
	result, err = agents[0].Call(target, rpc.Function("acc.add"), []interface{}{5}, nil)
	if got := checkCallNoError(t, result, err).(int); got != start+15 {
		t.Errorf("Accumulator is %v; want %v", got, start+15)
	}
}

func TestNestedCall(t *testing.T) {
	agents, stop := newGroup(t, 3)
	defer stop()

	// worker0 -> worker1, which dispatches to worker2 and returns its answer
	result, err := agents[0].Call(rpc.WorkerName(1), rpc.Function("nested.echo"),
		[]interface{}{"worker2", "ping"}, nil)
	if got := checkCallNoError(t, result, err).(string); got != "ping" {
		t.Errorf("Nested echo returned %q; want %q", got, "ping")
	}
}

func TestJoinSemantics(t *testing.T) {
	agents, _ := newGroup(t, 2)

	result, err := agents[0].Call(rpc.WorkerName(1), rpc.Function("noop"), nil, nil)
	checkCallNoError(t, result, err)

	var wg sync.WaitGroup
	for _, a := range agents {
		wg.Add(1)
		go func(a *rpc.Agent) {
			defer wg.Done()
			if err := a.Join(); err != nil {
				t.Errorf("Join failed: %v", err)
			}
		}(a)
	}
	wg.Wait()

	// calls after Join fail immediately with the uninitialized condition
	_, err = agents[0].Call(rpc.WorkerName(1), rpc.Function("noop"), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "RPC has not been initialized") {
		t.Errorf("Expected not-initialized error, got %v", err)
	}
	if _, err := agents[0].CallAsync(rpc.WorkerName(1), rpc.Function("noop"), nil, nil); err == nil {
		t.Error("CallAsync should fail after Join.")
	}
	if err := agents[0].Sync(); err == nil {
		t.Error("Sync should fail after Join.")
	}

	// joining again is a no-op
	done := make(chan error, 1)
	go func() { done <- agents[0].Join() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Second Join should be a no-op, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Second Join hung.")
	}
}

func TestCallBeforeInit(t *testing.T) {
	network := rpccore.NewChanNetwork(time.Second)
	defer network.Shutdown()
	node, err := network.NewNode("loner")
	if err != nil {
		t.Fatalf("Unable to create node: %v", err)
	}
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	a := rpc.NewAgent(node, network, logger.WithFields(logrus.Fields{"worker": "loner"}), 0)

	if _, err := a.Call("worker0", rpc.Function("noop"), nil, nil); err == nil ||
		!strings.Contains(err.Error(), "RPC has not been initialized") {
		t.Errorf("Expected not-initialized error, got %v", err)
	}
	if err := a.Join(); err == nil {
		t.Error("Join before Init should error.")
	}
}

func TestStressManyNoops(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()
	target := rpc.WorkerName(1)

	const calls = 1000
	futs := make([]*rpc.Future, calls)
	for i := 0; i < calls; i++ {
		fut, err := agents[0].CallAsync(target, rpc.Function("noop"), nil, nil)
		if err != nil {
			t.Fatalf("CallAsync %v failed: %v", i, err)
		}
		futs[i] = fut
	}
	for i, fut := range futs {
		result, err := fut.Wait()
		if err != nil {
			t.Fatalf("Future %v failed: %v", i, err)
		}
		if result.(int) != 0 {
			t.Errorf("noop returned %v; want 0", result)
		}
	}
}

func TestHeavyPayload(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()

	in := tensor.Full(3, 16, 16)
	want := ops.Heavy(in, 50)
	result, err := agents[0].Call(rpc.WorkerName(1), rpc.Function("tensor.heavy"),
		[]interface{}{in, 50}, nil)
	got := checkCallNoError(t, result, err).(tensor.Tensor)
	if !tensor.Equal(got, want) {
		t.Errorf("Heavy result differs from local run.")
	}
}

func TestGetInfo(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()

	info := agents[1].GetInfo()
	if info["name"] != fmt.Sprintf("%v\n", rpc.WorkerName(1)) {
		t.Errorf("Unexpected name in info: %q", info["name"])
	}
	if _, ok := info["state"]; !ok {
		t.Error("Info should include the lifecycle state.")
	}

	agents[1].SetDrainTimeout(3 * time.Second)
	info = agents[1].GetInfo()
	if info["drainTimeout"] != "3000000000\n" {
		t.Errorf("Unexpected drain timeout in info: %q", info["drainTimeout"])
	}
}

func TestNonzeroCall(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()

	in := tensor.Zeros(3, 4)
	in.Data[1] = 5
	in.Data[6] = -2
	in.Data[11] = 0.5
	want := tensor.Nonzero(in)

	result, err := agents[0].Call(rpc.WorkerName(1), rpc.Function("tensor.nonzero"),
		[]interface{}{in}, nil)
	got := checkCallNoError(t, result, err).(tensor.Tensor)
	if !tensor.Equal(got, want) {
		t.Errorf("Remote nonzero differs from local nonzero: %v, want %v", got, want)
	}
}

func TestInterleavedAsyncCalls(t *testing.T) {
	agents, stop := newGroup(t, 2)
	defer stop()
	target := rpc.WorkerName(1)

	const rounds = 10
	minFuts := make([]*rpc.Future, rounds)
	descFuts := make([]*rpc.Future, rounds)
	for i := 0; i < rounds; i++ {
		fut, err := agents[0].CallAsync(target, rpc.Function("min"),
			[]interface{}{i + 7, i, i + 3}, nil)
		if err != nil {
			t.Fatalf("CallAsync min %v failed: %v", i, err)
		}
		minFuts[i] = fut
		fut, err = agents[0].CallAsync(target,
			rpc.StaticMethod("Counter", "Describe"), []interface{}{i}, nil)
		if err != nil {
			t.Fatalf("CallAsync Describe %v failed: %v", i, err)
		}
		descFuts[i] = fut
	}
	for i := 0; i < rounds; i++ {
		result, err := minFuts[i].Wait()
		if got := checkCallNoError(t, result, err).(int); got != i {
			t.Errorf("min future %v resolved to %v; want %v", i, got, i)
		}
		result, err = descFuts[i].Wait()
		want := fmt.Sprintf("Counter(%d)", i)
		if got := checkCallNoError(t, result, err).(string); got != want {
			t.Errorf("Describe future %v resolved to %q; want %q", i, got, want)
		}
	}
}

func TestConcurrentInit(t *testing.T) {
	network := rpccore.NewChanNetwork(time.Second)
	defer network.Shutdown()
	store := rendezvous.NewMemoryStore(time.Second)
	logger := logrus.New()
	logger.Out = os.Stdout
	logger.SetLevel(logrus.WarnLevel)

	node, err := network.NewNode(rpc.WorkerName(0))
	if err != nil {
		t.Fatalf("Unable to create node: %v", err)
	}
	agent := rpc.NewAgent(node, network, logger.WithFields(logrus.Fields{
		"worker": node.NodeID(),
	}), 0)
	defer func() {
		_ = agent.Join()
	}()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = agent.Init(0, 1, store, string(rpc.WorkerName(0)))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !strings.Contains(err.Error(), "already been initialized") {
			t.Errorf("Unexpected Init error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("Exactly one Init should succeed, got %v: %v, %v", ok, errs[0], errs[1])
	}
}

func TestDirectCall(t *testing.T) {
	network := rpccore.NewChanNetwork(5 * time.Second)
	store := rendezvous.NewMemoryStore(5 * time.Second)
	logger := logrus.New()
	logger.Out = os.Stdout
	logger.SetLevel(logrus.WarnLevel)

	node, err := network.NewNode(rpc.WorkerName(0))
	if err != nil {
		t.Fatalf("Unable to create node: %v", err)
	}
	agent := rpc.NewAgent(node, network, logger.WithFields(logrus.Fields{
		"worker": node.NodeID(),
	}), 0)
	if err := agent.Init(0, 1, store, string(rpc.WorkerName(0))); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() {
		_ = agent.Join()
		network.Shutdown()
	}()

	// a client node never receives, so it registers no callback
	clientNode, err := network.NewNode("client0")
	if err != nil {
		t.Fatalf("Unable to create client node: %v", err)
	}

	result, err := rpc.DirectCall(clientNode, rpc.WorkerName(0),
		rpc.Function("echo"), []interface{}{"ping"}, nil)
	if got := checkCallNoError(t, result, err).(string); got != "ping" {
		t.Errorf(`Direct echo("ping") = %q`, got)
	}

	_, err = rpc.DirectCall(clientNode, rpc.WorkerName(0),
		rpc.Function("raise.value"), []interface{}{"bad input"}, nil)
	if err == nil || !strings.Contains(err.Error(), "ValueError") {
		t.Errorf("Direct call to a raising callable should surface the kind, got %v", err)
	}
}
