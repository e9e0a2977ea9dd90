package minion

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when options cannot be resolved into a
	// usable service or publisher. Construction fails fast with it.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrAckTimeout is the failure of a handler that did not complete within Options.Timeout.
	ErrAckTimeout = errors.New("Ack timeout")

	// ErrValidation wraps an error returned by a Handler's Validate function.
	ErrValidation = errors.New("validation failed")

	// ErrDecode is returned for message bodies that cannot be decoded.
	ErrDecode = errors.New("decode failed")

	// ErrAcknowledge wraps a failure to ack or nack a message.
	ErrAcknowledge = errors.New("acknowledge failed")

	// ErrConnection wraps failures of the broker connection: dialing, binding,
	// consuming and connection loss.
	ErrConnection = errors.New("connection error")
)

// HandlerError is the failure outcome of a dispatch. It is emitted on the
// error event after the message has been nacked.
type HandlerError struct {
	// Err is the handler's error, ErrAckTimeout, or a wrapped ErrValidation/ErrDecode.
	Err error

	// Payload is the decoded message the handler was called with.
	Payload any

	// Metadata is the delivery metadata of the message.
	Metadata Metadata

	// Requeue is the requeue decision applied to the nack. It is nil until the
	// message has been settled.
	Requeue *bool
}

// Error is the message of the underlying failure.
func (e *HandlerError) Error() string {
	if e.Err == nil {
		return "handler error"
	}
	return e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// requeueError carries a requeue hint set by the handler.
type requeueError struct {
	err     error
	requeue bool
}

func (e *requeueError) Error() string { return e.err.Error() }
func (e *requeueError) Unwrap() error { return e.err }

// Requeue marks err so that the message is nacked with requeue, regardless of
// Options.Requeue.
func Requeue(err error) error {
	if err == nil {
		return nil
	}
	return &requeueError{err: err, requeue: true}
}

// NoRequeue marks err so that the message is nacked without requeue.
func NoRequeue(err error) error {
	if err == nil {
		return nil
	}
	return &requeueError{err: err, requeue: false}
}

// NewRequeueError returns an error that requeues the message.
// An empty msg defaults to "Requeue Error".
func NewRequeueError(msg string) error {
	if msg == "" {
		msg = "Requeue Error"
	}
	return Requeue(errors.New(msg))
}

// requeueHint returns the outermost requeue hint in err's chain.
func requeueHint(err error) (requeue bool, ok bool) {
	var re *requeueError
	if errors.As(err, &re) {
		return re.requeue, true
	}
	return false, false
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
