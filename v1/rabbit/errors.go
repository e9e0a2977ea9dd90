package rabbit

import (
	"errors"
	"net"
	"strings"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Common RabbitMQ error types that can be used by consumers of this package.
// These provide a standardized set of errors that abstract away the
// underlying AMQP-specific error details.
var (
	// ErrConnectionFailed is returned when connection to RabbitMQ cannot be established
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionLost is returned when connection to RabbitMQ is lost
	ErrConnectionLost = errors.New("connection lost")

	// ErrConnectionClosed is returned when connection is closed
	ErrConnectionClosed = errors.New("connection closed")

	// ErrChannelClosed is returned when channel is closed
	ErrChannelClosed = errors.New("channel closed")

	// ErrAccessDenied is returned when access is denied to a resource
	ErrAccessDenied = errors.New("access denied")

	// ErrAuthenticationFailed is returned when authentication fails
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrVirtualHostNotFound is returned when virtual host doesn't exist
	ErrVirtualHostNotFound = errors.New("virtual host not found")

	// ErrExchangeNotFound is returned when exchange doesn't exist
	ErrExchangeNotFound = errors.New("exchange not found")

	// ErrQueueNotFound is returned when queue doesn't exist
	ErrQueueNotFound = errors.New("queue not found")

	// ErrResourceLocked is returned when an exclusive queue is used by another connection
	ErrResourceLocked = errors.New("resource locked")

	// ErrPreconditionFailed is returned when a redeclaration conflicts with existing topology
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrMessageTooLarge is returned when message exceeds size limits
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageNacked is returned when the broker negatively confirms a publish
	ErrMessageNacked = errors.New("message nacked")

	// ErrPublishFailed is returned when publish operation fails
	ErrPublishFailed = errors.New("publish failed")

	// ErrConsumeFailed is returned when consume operation fails
	ErrConsumeFailed = errors.New("consume failed")

	// ErrDeclareFailed is returned when an exchange or queue declaration fails
	ErrDeclareFailed = errors.New("declare failed")

	// ErrBindFailed is returned when bind operation fails
	ErrBindFailed = errors.New("bind failed")

	// ErrQoSFailed is returned when QoS operation fails
	ErrQoSFailed = errors.New("QoS failed")

	// ErrChannelError is returned for channel-level protocol errors
	ErrChannelError = errors.New("channel error")

	// ErrNotAllowed is returned when operation is not allowed
	ErrNotAllowed = errors.New("not allowed")

	// ErrInternalError is returned for broker internal errors
	ErrInternalError = errors.New("internal error")

	// ErrProtocolError is returned for frame and syntax errors
	ErrProtocolError = errors.New("protocol error")

	// ErrTimeout is returned when operation times out
	ErrTimeout = errors.New("timeout")

	// ErrNetworkError is returned for network-related errors
	ErrNetworkError = errors.New("network error")

	// ErrShutdown is returned when the client is shutting down
	ErrShutdown = errors.New("shutdown")

	// ErrInvalidConfiguration is returned when the client configuration is invalid
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// TranslateError converts AMQP/RabbitMQ-specific errors into standardized errors.
// It maps common RabbitMQ errors to the sentinel errors defined above.
// If an error doesn't match any known type, it's returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, amqp.ErrClosed) {
		return ErrConnectionClosed
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return translateAMQPError(amqpErr)
	}

	// syscall.Errno also satisfies net.Error, so it is checked first
	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.EHOSTUNREACH, syscall.ENETUNREACH:
			return ErrConnectionFailed
		case syscall.ECONNRESET, syscall.EPIPE:
			return ErrConnectionLost
		case syscall.ETIMEDOUT:
			return ErrTimeout
		}
		return ErrNetworkError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetworkError
	}

	return err
}

// translateAMQPError maps AMQP error codes to custom errors
func translateAMQPError(amqpErr *amqp.Error) error {
	switch amqpErr.Code {
	// Connection-level errors (300-399)
	case amqp.ConnectionForced:
		return ErrConnectionClosed
	case amqp.InvalidPath:
		return ErrVirtualHostNotFound
	case amqp.AccessRefused:
		if strings.Contains(strings.ToLower(amqpErr.Reason), "login") {
			return ErrAuthenticationFailed
		}
		return ErrAccessDenied
	case amqp.NotFound:
		reason := strings.ToLower(amqpErr.Reason)
		switch {
		case strings.Contains(reason, "exchange"):
			return ErrExchangeNotFound
		case strings.Contains(reason, "queue"):
			return ErrQueueNotFound
		}
		return ErrVirtualHostNotFound
	case amqp.ResourceLocked:
		return ErrResourceLocked
	case amqp.PreconditionFailed:
		return ErrPreconditionFailed

	// Channel-level errors (400-499)
	case amqp.ContentTooLarge:
		return ErrMessageTooLarge
	case amqp.NoRoute, amqp.NoConsumers:
		return ErrPublishFailed
	case amqp.ChannelError, amqp.UnexpectedFrame, amqp.ResourceError:
		return ErrChannelError
	case amqp.NotAllowed, amqp.NotImplemented:
		return ErrNotAllowed
	case amqp.InternalError:
		return ErrInternalError

	// Frame-level errors (500-599)
	case amqp.SyntaxError, amqp.CommandInvalid, amqp.FrameError:
		return ErrProtocolError
	}

	if strings.Contains(strings.ToLower(amqpErr.Reason), "channel") {
		return ErrChannelClosed
	}
	return amqpErr
}

// IsConnectionError reports whether err means the broker connection is unusable.
func IsConnectionError(err error) bool {
	translated := TranslateError(err)
	return errors.Is(translated, ErrConnectionFailed) ||
		errors.Is(translated, ErrConnectionLost) ||
		errors.Is(translated, ErrConnectionClosed) ||
		errors.Is(translated, ErrNetworkError)
}

// IsRetryableError reports whether retrying the same operation later may succeed.
func IsRetryableError(err error) bool {
	translated := TranslateError(err)
	return IsConnectionError(err) ||
		errors.Is(translated, ErrChannelClosed) ||
		errors.Is(translated, ErrTimeout) ||
		errors.Is(translated, ErrResourceLocked) ||
		errors.Is(translated, ErrInternalError)
}
