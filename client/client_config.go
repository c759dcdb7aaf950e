package client

import (
	"fmt"

	"github.com/PwzXxm/rpc-lite/rpc"
	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/PwzXxm/rpc-lite/utils"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

type clientConfig struct {
	WorkerAddrMap map[rpccore.NodeID]string
	ClientID      string
	TimeoutSec    int
}

func StartClientFromFile(filepath string) error {
	var config clientConfig
	err := utils.ReadFromJSON(&config, filepath)
	if err != nil {
		return err
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = 5
	}

	fl := flock.New(filepath)
	if locked, _ := fl.TryLock(); !locked {
		return errors.New("Unable to lock the config file," +
			" make sure there isn't another instance running.")
	}
	defer func() {
		_ = fl.Unlock()
	}()

	c, err := NewClientFromConfig(config)
	if err != nil {
		return err
	}
	defer c.Shutdown()
	c.startReadingCmd()
	return nil
}

// RunOnceFromFile issues a single call against a running group and prints
// the result, for scripting. The worker defaults to the first one in the
// config when left empty. No config lock is taken so one-shot invocations
// can run concurrently.
func RunOnceFromFile(filepath, worker, fn, rawArgs string) error {
	var config clientConfig
	err := utils.ReadFromJSON(&config, filepath)
	if err != nil {
		return err
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = 5
	}

	c, err := NewClientFromConfig(config)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	target := c.workers[0]
	if worker != "" {
		target = rpccore.NodeID(worker)
	}
	args, err := parseJSONArgs(rawArgs)
	if err != nil {
		return err
	}
	result, err := c.Call(target, rpc.Function(fn), args, nil)
	if err != nil {
		return err
	}
	fmt.Printf("%v\n", result)
	return nil
}
