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

// Package client implements a client-only node: it joins no group and owns
// no listener, so its calls are executed synchronously on the target and
// answered in the transport reply.
package client

import (
	"os"
	"sort"
	"time"

	// decode results whose concrete types the workers register
	_ "github.com/PwzXxm/rpc-lite/ops"
	"github.com/PwzXxm/rpc-lite/rpc"
	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Client struct {
	clientID string
	net      *rpccore.TCPNetwork
	node     rpccore.Node
	workers  []rpccore.NodeID

	logger *logrus.Logger
}

func NewClientFromConfig(config clientConfig) (*Client, error) {
	if len(config.WorkerAddrMap) == 0 {
		return nil, errors.New("Config has no workers to talk to.")
	}

	c := new(Client)
	c.clientID = config.ClientID
	c.net = rpccore.NewTCPNetwork(time.Duration(config.TimeoutSec) * time.Second)

	node, err := c.net.NewLocalClientOnlyNode(rpccore.NodeID(config.ClientID))
	if err != nil {
		return nil, err
	}
	c.node = node

	for worker, addr := range config.WorkerAddrMap {
		if err := c.net.NewRemoteNode(worker, addr); err != nil {
			return nil, err
		}
		c.workers = append(c.workers, worker)
	}
	sort.Slice(c.workers, func(i, j int) bool { return c.workers[i] < c.workers[j] })

	c.logger = logrus.New()
	c.logger.Out = os.Stdout
	return c, nil
}

// Call executes ref on the target worker and blocks for the reply.
func (c *Client) Call(target rpccore.NodeID, ref rpc.CallRef,
	args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	return rpc.DirectCall(c.node, target, ref, args, kwargs)
}

func (c *Client) Shutdown() {
	c.net.Shutdown()
}
