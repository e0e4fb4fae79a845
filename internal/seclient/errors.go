package seclient

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionUnavailable = errors.New("seclient: transport unavailable")
	ErrInitRejected          = errors.New("seclient: init rejected")
	ErrChunkRejected         = errors.New("seclient: chunk rejected")
	ErrFinalizeFailed        = errors.New("seclient: finalize failed")
	ErrMalformedResponse     = errors.New("seclient: malformed response")
	ErrNoActiveOperation     = errors.New("seclient: no active operation")
	ErrOperationInFlight     = errors.New("seclient: operation already in flight")
)

// StatusError ties a failure kind to the device status word that caused
// it. errors.Is matches the kind; errors.As recovers the code.
type StatusError struct {
	Kind error
	SW   uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v (status 0x%04X)", e.Kind, e.SW)
}

func (e *StatusError) Unwrap() error { return e.Kind }

func statusErr(kind error, sw uint16) error {
	return &StatusError{Kind: kind, SW: sw}
}
