package functests

import (
	"strings"
	"time"

	"github.com/PwzXxm/rpc-lite/ops"
	"github.com/PwzXxm/rpc-lite/rpc"
	"github.com/PwzXxm/rpc-lite/simulation"
	"github.com/PwzXxm/rpc-lite/tensor"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
)

func caseBlockingTensorAdd() (err error) {
	sl := simulation.RunLocally(3)
	defer sl.StopAll()

	a := tensor.Ones(4, 5)
	b := tensor.Full(2.5, 4, 5)
	want, err := tensor.Add(a, b)
	if err != nil {
		return
	}

	for rank := 1; rank < 3; rank++ {
		result, err := sl.Call(rpc.WorkerName(0), rpc.WorkerName(rank),
			rpc.Function("tensor.add"), []interface{}{a, b}, nil)
		if err != nil {
			return err
		}
		if !tensor.Equal(result.(tensor.Tensor), want) {
			return errors.Errorf("Remote result differs from local: %v, want %v",
				result, want)
		}
	}
	return nil
}

func caseAsyncFutures() (err error) {
	sl := simulation.RunLocally(2)
	defer sl.StopAll()
	agent := sl.Agent(rpc.WorkerName(0))

	const calls = 20
	futs := make([]*rpc.Future, calls)
	for i := 0; i < calls; i++ {
		futs[i], err = agent.CallAsync(rpc.WorkerName(1), rpc.Function("echo"),
			[]interface{}{i * 11}, nil)
		if err != nil {
			return
		}
	}
	for i, fut := range futs {
		result, err := fut.Wait()
		if err != nil {
			return err
		}
		if result.(int) != i*11 {
			return errors.Errorf("Future %v resolved to %v, want %v", i, result, i*11)
		}
	}
	return nil
}

func caseAllCallableKinds() (err error) {
	sl := simulation.RunLocally(2)
	defer sl.StopAll()
	agent := sl.Agent(rpc.WorkerName(0))
	target := rpc.WorkerName(1)

	result, err := agent.Call(target, rpc.Function("min"), []interface{}{7, 3, 9}, nil)
	if err != nil {
		return
	}
	if result.(int) != 3 {
		return errors.Errorf("min returned %v", result)
	}

	result, err = agent.Call(target, rpc.Constructor("Counter"), []interface{}{5}, nil)
	if err != nil {
		return
	}
	if result.(*ops.Counter).Value != 5 {
		return errors.Errorf("Constructor returned %v", result)
	}

	result, err = agent.Call(target, rpc.BoundMethod("Counter", "Incr", 5),
		[]interface{}{3}, nil)
	if err != nil {
		return
	}
	if result.(int) != 8 {
		return errors.Errorf("Bound method returned %v", result)
	}

	result, err = agent.Call(target, rpc.ClassMethod("Counter", "FromPair"),
		[]interface{}{2, 3}, nil)
	if err != nil {
		return
	}
	if result.(*ops.Counter).Value != 5 {
		return errors.Errorf("Class method returned %v", result)
	}

	result, err = agent.Call(target, rpc.StaticMethod("Counter", "Describe"),
		[]interface{}{5}, nil)
	if err != nil {
		return
	}
	if result.(string) != "Counter(5)" {
		return errors.Errorf("Static method returned %v", result)
	}
	return nil
}

func caseErrorPropagation() (err error) {
	sl := simulation.RunLocally(2)
	defer sl.StopAll()
	agent := sl.Agent(rpc.WorkerName(0))
	target := rpc.WorkerName(1)

	_, err = agent.Call(target, rpc.Function("raise.value"),
		[]interface{}{"deliberate"}, nil)
	if err == nil || !strings.Contains(err.Error(), "ValueError") {
		return errors.Errorf("Expected ValueError, got %v", err)
	}

	_, err = agent.Call(target, rpc.Function("linear"), []interface{}{1.0}, nil)
	if err == nil || !strings.Contains(err.Error(), "TypeError") {
		return errors.Errorf("Expected TypeError, got %v", err)
	}
	return nil
}

func caseSyncBarrier() (err error) {
	sl := simulation.RunLocally(2)
	defer sl.StopAll()
	agent := sl.Agent(rpc.WorkerName(0))
	target := rpc.WorkerName(1)

	base, err := agent.Call(target, rpc.Function("acc.get"), nil, nil)
	if err != nil {
		return
	}
	want := base.(int) + 100

	for i := 0; i < 50; i++ {
		if _, err = agent.CallAsync(target, rpc.Function("acc.add"),
			[]interface{}{2}, nil); err != nil {
			return
		}
	}
	if err = agent.Sync(); err != nil {
		return
	}
	result, err := agent.Call(target, rpc.Function("acc.get"), nil, nil)
	if err != nil {
		return
	}
	if result.(int) != want {
		return errors.Errorf("Accumulator is %v after barrier, want %v", result, want)
	}
	return nil
}

func caseJoinThenReject() (err error) {
	sl := simulation.RunLocally(3)
	agent := sl.Agent(rpc.WorkerName(0))

	if _, err = agent.Call(rpc.WorkerName(1), rpc.Function("noop"), nil, nil); err != nil {
		return
	}

	// the join barrier is symmetric, all members must enter it
	sl.StopAll()

	_, err = agent.Call(rpc.WorkerName(1), rpc.Function("noop"), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "RPC has not been initialized") {
		return errors.Errorf("Expected not-initialized error, got %v", err)
	}
	// a second join must not error or hang
	if err = agent.Join(); err != nil {
		return errors.Errorf("Second join failed: %v", err)
	}
	return nil
}

func caseNestedCall() (err error) {
	sl := simulation.RunLocally(3)
	defer sl.StopAll()

	result, err := sl.Call(rpc.WorkerName(0), rpc.WorkerName(1),
		rpc.Function("nested.echo"), []interface{}{"worker2", 1234}, nil)
	if err != nil {
		return
	}
	if result.(int) != 1234 {
		return errors.Errorf("Nested call returned %v, want 1234", result)
	}
	return nil
}

func caseStressNoops() (err error) {
	sl := simulation.RunLocally(2)
	defer sl.StopAll()
	agent := sl.Agent(rpc.WorkerName(0))

	const calls = 1000
	futs := make([]*rpc.Future, calls)
	for i := 0; i < calls; i++ {
		futs[i], err = agent.CallAsync(rpc.WorkerName(1), rpc.Function("noop"), nil, nil)
		if err != nil {
			return
		}
	}
	for i, fut := range futs {
		result, err := fut.Wait()
		if err != nil {
			return errors.Wrapf(err, "future %v failed", i)
		}
		if result.(int) != 0 {
			return errors.Errorf("noop %v returned %v", i, result)
		}
	}
	return nil
}

func caseHeavyPayload() (err error) {
	sl := simulation.RunLocally(2)
	defer sl.StopAll()
	sl.SetLatency(0, 50*time.Millisecond)
	defer sl.SetLatency(0, 0)
	agent := sl.Agent(rpc.WorkerName(0))

	in := tensor.Full(7, 32, 32)
	want := ops.Heavy(in, 100)

	var wg conc.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Go(func() {
			result, err := agent.Call(rpc.WorkerName(1), rpc.Function("tensor.heavy"),
				[]interface{}{in, 100}, nil)
			if err != nil {
				errCh <- err
				return
			}
			if !tensor.Equal(result.(tensor.Tensor), want) {
				errCh <- errors.New("Heavy result differs from local run")
			}
		})
	}
	wg.Wait()
	select {
	case err = <-errCh:
		return
	default:
		return nil
	}
}
