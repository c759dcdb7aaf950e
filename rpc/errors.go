package rpc

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotInitialized is returned by any call issued before Init or after
// Join has completed.
var ErrNotInitialized = errors.New("RPC has not been initialized")

// ErrLostResponse fails a future whose response never arrived before the
// group tore down.
var ErrLostResponse = errors.New("response lost: RPC group torn down while waiting")

// RemoteError carries a failure that happened on the serving side. Kind is
// the stable name of the failure class ("TypeError", "ValueError",
// "RuntimeError", ...) so callers can match on it; the live error value
// never crosses the process boundary.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %v: %v", e.Kind, e.Message)
}

// errorKinder lets callables pick the kind tag their failures propagate
// under, instead of the error's Go type name.
type errorKinder interface {
	ErrorKind() string
}
