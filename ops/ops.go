// Package ops registers the callables shared by every member of a group.
// Both the calling and the serving side must import this package so a
// CallRef resolves to the identical executable on both ends.
package ops

import (
	"encoding/gob"
	"fmt"

	"github.com/PwzXxm/rpc-lite/rpc"
	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/PwzXxm/rpc-lite/tensor"
	"github.com/sasha-s/go-deadlock"
)

// ValueError propagates across the RPC boundary under the kind
// "ValueError".
type ValueError struct {
	Msg string
}

func (e *ValueError) Error() string {
	return e.Msg
}

// Counter is the stateful class exercising constructor, bound-method,
// class-method and static-method dispatch. Bound methods act on an
// instance reconstructed on the serving side, never on shared state.
type Counter struct {
	Value int
}

func NewCounter(start int) *Counter {
	return &Counter{Value: start}
}

func (c *Counter) Incr(by int) int {
	c.Value += by
	return c.Value
}

func (c *Counter) Get() int {
	return c.Value
}

// Accumulators hold the per-agent remote side effects used to observe
// barrier ordering. Keyed by agent name so simulated workers sharing one
// process stay independent.
var (
	accLock      deadlock.Mutex
	accumulators = make(map[rpccore.NodeID]int)
)

func init() {
	gob.Register(&Counter{})

	rpc.RegisterFunc("echo", func(v interface{}) interface{} {
		return v
	}, "v")

	rpc.RegisterFunc("noop", func() int {
		return 0
	})

	rpc.RegisterFunc("min", func(xs ...int) (int, error) {
		if len(xs) == 0 {
			return 0, &ValueError{Msg: "min() arg is an empty sequence"}
		}
		m := xs[0]
		for _, x := range xs[1:] {
			if x < m {
				m = x
			}
		}
		return m, nil
	})

	rpc.RegisterFunc("linear", func(x, w, b float64) float64 {
		return w*x + b
	}, "x", "w", "b")

	rpc.RegisterFunc("raise.value", func(msg string) error {
		return &ValueError{Msg: msg}
	}, "msg")

	rpc.RegisterFunc("tensor.add", func(a, b tensor.Tensor) (tensor.Tensor, error) {
		out, err := tensor.Add(a, b)
		if err != nil {
			return tensor.Tensor{}, &ValueError{Msg: err.Error()}
		}
		return out, nil
	}, "a", "b")

	rpc.RegisterFunc("tensor.add_scalar", func(t tensor.Tensor, s float64) tensor.Tensor {
		return tensor.AddScalar(t, s)
	}, "t", "s")

	rpc.RegisterFunc("tensor.ones", func(shape ...int) tensor.Tensor {
		return tensor.Ones(shape...)
	})

	rpc.RegisterFunc("tensor.nonzero", func(t tensor.Tensor) tensor.Tensor {
		return tensor.Nonzero(t)
	}, "t")

	rpc.RegisterFunc("tensor.heavy", Heavy, "t", "iters")

	rpc.RegisterFunc("nested.echo", func(a *rpc.Agent, target string, v interface{}) (interface{}, error) {
		return a.Call(rpccore.NodeID(target), rpc.Function("echo"),
			[]interface{}{v}, nil)
	}, "target", "v")

	rpc.RegisterFunc("acc.add", func(a *rpc.Agent, v int) int {
		accLock.Lock()
		defer accLock.Unlock()
		accumulators[a.Name()] += v
		return accumulators[a.Name()]
	}, "v")

	rpc.RegisterFunc("acc.get", func(a *rpc.Agent) int {
		accLock.Lock()
		defer accLock.Unlock()
		return accumulators[a.Name()]
	})

	rpc.RegisterClass("Counter", NewCounter, "start").
		ClassMethod("FromPair", func(a, b int) *Counter {
			return NewCounter(a + b)
		}, "a", "b").
		StaticMethod("Describe", func(v int) string {
			return fmt.Sprintf("Counter(%d)", v)
		}, "v").
		Method("Incr", "by").
		Method("Get")
}

// Heavy burns cycles proportional to iters times the tensor size, the
// long-running remote call used by stress workloads.
func Heavy(t tensor.Tensor, iters int) tensor.Tensor {
	out := t
	for i := 0; i < iters; i++ {
		out = tensor.Scale(tensor.AddScalar(out, 1), 0.5)
	}
	return out
}
