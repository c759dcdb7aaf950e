package functests

import (
	"fmt"
	"time"

	"github.com/PwzXxm/rpc-lite/rpc"
	"github.com/PwzXxm/rpc-lite/simulation"
	"github.com/PwzXxm/rpc-lite/tensor"
	"github.com/PwzXxm/rpc-lite/utils"
	"github.com/pkg/errors"
)

const (
	eventTensorCall = "tc"
	eventEchoBurst  = "eb"
	eventSyncAll    = "sy"
	eventJitter     = "ji"
	eventCalm       = "cl"
)

const (
	tcWeight    = 4
	ebWeight    = 3
	syWeight    = 2
	jiWeight    = 1
	clWeight    = 1
	totalWeight = tcWeight + ebWeight + syWeight + jiWeight + clWeight
)

func getRandomEvent() string {
	weightList := []int{tcWeight, ebWeight, syWeight, jiWeight, clWeight}
	eventList := []string{eventTensorCall, eventEchoBurst, eventSyncAll, eventJitter, eventCalm}
	rd := utils.Random(0, totalWeight)
	sum := 0
	for i, weight := range weightList {
		sum += weight
		if sum >= rd {
			return eventList[i]
		}
	}
	return eventTensorCall
}

// RunComplex drives a 5-worker group with randomly generated call batches,
// barriers and network jitter for the given number of minutes, verifying
// every result against the local computation.
func RunComplex(minutes int64) error {
	sl := simulation.RunLocally(5)
	defer sl.StopAll()

	deadline := time.Now().Add(time.Duration(minutes) * time.Minute)
	checks := 0
	for time.Now().Before(deadline) {
		from := rpc.WorkerName(utils.Random(0, 4))
		to := rpc.WorkerName(utils.Random(0, 4))
		for to == from {
			to = rpc.WorkerName(utils.Random(0, 4))
		}

		switch getRandomEvent() {
		case eventTensorCall:
			rows := utils.Random(1, 8)
			cols := utils.Random(1, 8)
			a := tensor.Full(utils.RandomFloat(-10, 10), rows, cols)
			b := tensor.Full(utils.RandomFloat(-10, 10), rows, cols)
			want, _ := tensor.Add(a, b)
			result, err := sl.Call(from, to, rpc.Function("tensor.add"),
				[]interface{}{a, b}, nil)
			if err != nil {
				return err
			}
			if !tensor.Equal(result.(tensor.Tensor), want) {
				return errors.Errorf("tensor.add mismatch: %v, want %v", result, want)
			}
		case eventEchoBurst:
			agent := sl.Agent(from)
			n := utils.Random(5, 30)
			futs := make([]*rpc.Future, n)
			for i := 0; i < n; i++ {
				fut, err := agent.CallAsync(to, rpc.Function("echo"),
					[]interface{}{i}, nil)
				if err != nil {
					return err
				}
				futs[i] = fut
			}
			for i, fut := range futs {
				result, err := fut.Wait()
				if err != nil {
					return err
				}
				if result.(int) != i {
					return errors.Errorf("echo burst cross-talk: %v, want %v", result, i)
				}
			}
		case eventSyncAll:
			if err := sl.Sync(from); err != nil {
				return err
			}
		case eventJitter:
			max := utils.RandomTime(10*time.Millisecond, 100*time.Millisecond)
			sl.SetLatency(0, max)
			fmt.Printf("Network one way latency up to %v\n", max)
		case eventCalm:
			sl.SetLatency(0, 0)
		}

		checks++
		if checks%100 == 0 {
			fmt.Printf("Check %v passed\n", checks)
		}
	}
	fmt.Printf("Workload finished, %v checks passed\n", checks)
	return nil
}
