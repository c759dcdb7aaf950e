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

package rpc

import (
	"fmt"
	"time"

	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/pkg/errors"
)

// handleRequestAndLogError takes arguments and returns response data and error value if occurs
func (a *Agent) handleRequestAndLogError(source rpccore.NodeID, method string, data []byte) ([]byte, error) {
	res, err := a.handleRequest(source, method, data)
	if err != nil {
		a.logger.Debugf("Handle RPC call failed. \n source: %v, method: %v, error: %v",
			source, method, err)
	}
	return res, err
}

// handleRequest runs on the listener path and must stay cheap: call
// requests are decoded, admitted and handed to the execution pool; only
// bookkeeping messages are handled inline.
func (a *Agent) handleRequest(source rpccore.NodeID, method string, data []byte) ([]byte, error) {
	switch method {
	case rpcMethodCall:
		var req callReq
		if err := decodeMsg(data, &req); err != nil {
			return nil, err
		}
		if err := a.admitExecution(); err != nil {
			return nil, err
		}
		a.exec.Go(func() {
			defer a.execWG.Done()
			a.execute(req)
		})
		return nil, nil
	case rpcMethodResponse:
		var res callRes
		if err := decodeMsg(data, &res); err != nil {
			return nil, err
		}
		if res.OK {
			a.settle(res.RequestID, res.Result, nil)
		} else {
			a.settle(res.RequestID, nil, &RemoteError{Kind: res.ErrKind, Message: res.ErrMsg})
		}
		return nil, nil
	case rpcMethodLeave:
		var req leaveReq
		if err := decodeMsg(data, &req); err != nil {
			return nil, err
		}
		a.mutex.Lock()
		a.peersLeft[req.Source] = true
		a.cond.Broadcast()
		a.mutex.Unlock()
		a.logger.Debugf("Peer left the group: %v", req.Source)
		return nil, nil
	case rpcMethodDirect:
		var req directReq
		if err := decodeMsg(data, &req); err != nil {
			return nil, err
		}
		if err := a.admitExecution(); err != nil {
			return nil, err
		}
		defer a.execWG.Done()
		result, rerr := invoke(a, req.Ref, req.Args, req.Kwargs)
		return encodeMsg(toCallRes(0, result, rerr))
	default:
		return nil, errors.New(fmt.Sprintf("Unsupport method: %v", method))
	}
}

// admitExecution gates inbound executions on the lifecycle: served while
// Active or Draining, rejected once Closed so Join can wait out the pool.
func (a *Agent) admitExecution() error {
	a.mutex.Lock()
	if a.state != stateActive && a.state != stateDraining {
		a.mutex.Unlock()
		// reduce the number of logs on the sender
		time.Sleep(1 * time.Second)
		return ErrNotInitialized
	}
	a.execWG.Add(1)
	a.mutex.Unlock()
	return nil
}

// execute runs a call request on the worker pool and ships the outcome
// back to the origin as a response message.
func (a *Agent) execute(req callReq) {
	result, rerr := invoke(a, req.Ref, req.Args, req.Kwargs)
	if rerr != nil {
		a.logger.Debugf("Execution failed. \n source: %v, ref: %v, error: %v",
			req.Source, req.Ref, rerr)
	}
	data, err := encodeMsg(toCallRes(req.RequestID, result, rerr))
	if err != nil {
		// result not serializable; the origin still needs an answer
		a.logger.Debugf("Unable to encode result for %v: %v", req.Ref, err)
		data, err = encodeMsg(toCallRes(req.RequestID, nil, &RemoteError{
			Kind:    "TypeError",
			Message: fmt.Sprintf("result of %v is not serializable: %v", req.Ref, err),
		}))
		if err != nil {
			return
		}
	}
	if _, err := a.node.SendRawRequest(req.Source, rpcMethodResponse, data); err != nil {
		a.logger.Debugf("Unable to deliver response to %v: %v", req.Source, err)
	}
}

func toCallRes(id uint64, result interface{}, rerr *RemoteError) callRes {
	if rerr != nil {
		return callRes{RequestID: id, OK: false, ErrKind: rerr.Kind, ErrMsg: rerr.Message}
	}
	return callRes{RequestID: id, OK: true, Result: result}
}
