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
	"bytes"
	"encoding/gob"

	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/pkg/errors"
)

const (
	rpcMethodCall     = "ca"
	rpcMethodResponse = "re"
	rpcMethodLeave    = "lv"
	rpcMethodDirect   = "dc"
)

func init() {
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
}

// callReq travels origin -> target. The listener acknowledges it as soon
// as it is decoded and handed to the executor; the outcome comes back
// later as a separate callRes message.
type callReq struct {
	RequestID uint64
	Source    rpccore.NodeID // origin worker name, where the response goes
	Ref       CallRef
	Args      []interface{}
	Kwargs    map[string]interface{}
}

type callRes struct {
	RequestID uint64
	OK        bool
	Result    interface{}
	ErrKind   string
	ErrMsg    string
}

type leaveReq struct {
	Source rpccore.NodeID
}

// directReq is executed synchronously on the listener path and answered in
// the transport reply, for client-only nodes that cannot receive callRes
// messages.
type directReq struct {
	Ref    CallRef
	Args   []interface{}
	Kwargs map[string]interface{}
}

// encodeMsg takes a message struct and returns the gob bytes
func encodeMsg(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(v)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

// decodeMsg decodes gob bytes into the given message struct
func decodeMsg(data []byte, v interface{}) error {
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(v)
	return errors.WithStack(err)
}

// DirectCall executes ref synchronously on the target worker and returns
// the result in the transport reply. Used by client-only nodes; group
// members use Agent.Call instead.
func DirectCall(node rpccore.Node, target rpccore.NodeID, ref CallRef,
	args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	data, err := encodeMsg(directReq{Ref: ref, Args: args, Kwargs: kwargs})
	if err != nil {
		return nil, err
	}
	resData, err := node.SendRawRequest(target, rpcMethodDirect, data)
	if err != nil {
		// already wrapped
		return nil, err
	}
	var res callRes
	if err := decodeMsg(resData, &res); err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, &RemoteError{Kind: res.ErrKind, Message: res.ErrMsg}
	}
	return res.Result, nil
}
