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

// Package rendezvous provides the key-value store used by worker processes
// to exchange their addresses during group formation. It is only used while
// the group is forming, never on the RPC hot path.
package rendezvous

// Store is the rendezvous key-value store. Get blocks until the key has
// been set by some member or the store's wait timeout elapses.
type Store interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
}
