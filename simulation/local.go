package simulation

import (
	"os"
	"time"

	// populate the callable registry for every simulated worker
	_ "github.com/PwzXxm/rpc-lite/ops"
	"github.com/PwzXxm/rpc-lite/rendezvous"
	"github.com/PwzXxm/rpc-lite/rpc"
	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/PwzXxm/rpc-lite/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

const rpcTimeout = 4 * time.Second
const rendezvousTimeout = 10 * time.Second

type local struct {
	n       int
	network *rpccore.ChanNetwork
	store   *rendezvous.Memory
	agents  map[rpccore.NodeID]*rpc.Agent
	loggers map[rpccore.NodeID]*logrus.Logger
}

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Out = os.Stdout
}

// RunLocally forms an n-worker group inside this process, over the channel
// network and an in-memory rendezvous store.
func RunLocally(n int) *local {
	log.Info("Starting simulation locally ...")

	l, err := newLocal(n)
	if err != nil {
		log.Panicln(err)
	}

	return l
}

func newLocal(n int) (*local, error) {
	if n <= 0 {
		err := errors.Errorf("The number of workers should be positive, but got %v", n)
		return nil, err
	}

	l := new(local)
	l.n = n
	l.network = rpccore.NewChanNetwork(rpcTimeout)
	l.store = rendezvous.NewMemoryStore(rendezvousTimeout)
	l.agents = make(map[rpccore.NodeID]*rpc.Agent)
	l.loggers = make(map[rpccore.NodeID]*logrus.Logger)

	for i := 0; i < n; i++ {
		node, err := l.network.NewNode(rpc.WorkerName(i))
		if err != nil {
			err = errors.Errorf("Failed to allocate a new node with node id %v", node.NodeID())
			return nil, err
		}

		logger := logrus.New()
		logger.Out = os.Stdout
		l.loggers[node.NodeID()] = logger
		l.agents[node.NodeID()] = rpc.NewAgent(node, l.network, logger.WithFields(logrus.Fields{
			"worker": node.NodeID(),
		}), rpc.DefaultPoolSize)
	}

	// every Init blocks until the whole group has registered, so they have
	// to run together
	errs := make([]error, n)
	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Go(func() {
			errs[i] = l.agents[rpc.WorkerName(i)].Init(i, n, l.store, string(rpc.WorkerName(i)))
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Agent exposes a member agent, mainly to the functional tests.
func (l *local) Agent(id rpccore.NodeID) *rpc.Agent {
	return l.agents[id]
}

// StopAll joins every agent (the join barrier is symmetric, so they must
// run together) and tears the network down.
func (l *local) StopAll() {
	var wg conc.WaitGroup
	for _, a := range l.agents {
		a := a
		wg.Go(func() {
			if err := a.Join(); err != nil {
				log.Warnf("Join failed: %v", err)
			}
		})
	}
	wg.Wait()
	l.network.Shutdown()
}

// Call issues a blocking call from one member to another.
func (l *local) Call(from, to rpccore.NodeID, ref rpc.CallRef,
	args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	a, ok := l.agents[from]
	if !ok {
		return nil, errors.Errorf("Unknown worker: %v.", from)
	}
	return a.Call(to, ref, args, kwargs)
}

func (l *local) Sync(id rpccore.NodeID) error {
	a, ok := l.agents[id]
	if !ok {
		return errors.Errorf("Unknown worker: %v.", id)
	}
	return a.Sync()
}

func (l *local) Wait(sec int) {
	if sec <= 0 {
		log.Warnf("Seconds to wait should be positive integer, not %v", sec)
		return
	}

	log.Infof("Sleeping for %v second(s)", sec)
	time.Sleep(time.Duration(sec) * time.Second)
}

// SetLatency adds random one-way delivery delay within [min, max] to every
// message, for shaking out ordering assumptions.
func (l *local) SetLatency(min, max time.Duration) {
	if max <= 0 {
		l.network.SetDelayGenerator(func(source, target rpccore.NodeID) time.Duration {
			return 0
		})
		return
	}
	l.network.SetDelayGenerator(func(source, target rpccore.NodeID) time.Duration {
		return utils.RandomTime(min, max)
	})
}

func (l *local) getAllNodeIDs() []rpccore.NodeID {
	rst := make([]rpccore.NodeID, l.n)
	for i := 0; i < l.n; i++ {
		rst[i] = rpc.WorkerName(i)
	}
	return rst
}

func (l *local) getAllNodeInfo() map[rpccore.NodeID]map[string]string {
	m := make(map[rpccore.NodeID]map[string]string)
	for nodeID, agent := range l.agents {
		m[nodeID] = agent.GetInfo()
	}
	return m
}
