package minion

import (
	"context"
	"encoding/json"
	"fmt"
)

// HandlerFunc processes one message. A nil error acks the message and the
// returned value is emitted as the response event.
type HandlerFunc func(ctx context.Context, message any, meta Metadata) (any, error)

// ValidateFunc rejects a message before the handler sees it.
type ValidateFunc func(message any) error

// Target selects what New builds: a Handler becomes a *Service, a
// PublisherConfig becomes a Publisher.
type Target interface {
	isTarget()
}

// Handler is a named message handler with its declared settings.
type Handler struct {
	// Name identifies the handler and is the default queue, exchange and key.
	Name     string
	Fn       HandlerFunc
	Settings Settings

	// Validate is optional. Its failure nacks the message without requeue.
	Validate ValidateFunc
}

// PublisherConfig builds a Publisher only; nothing is consumed.
type PublisherConfig struct {
	Settings Settings
}

func (Handler) isTarget()         {}
func (PublisherConfig) isTarget() {}

// JSONHandler adapts a typed function to a HandlerFunc. The decoded message is
// converted to T through a JSON round trip; raw bodies are unmarshaled directly.
func JSONHandler[T any](fn func(ctx context.Context, message T, meta Metadata) (any, error)) HandlerFunc {
	return func(ctx context.Context, message any, meta Metadata) (any, error) {
		var typed T
		if err := convert(message, &typed); err != nil {
			return nil, NoRequeue(fmt.Errorf("%w: %w", ErrDecode, err))
		}
		return fn(ctx, typed, meta)
	}
}

func convert(message any, out any) error {
	switch m := message.(type) {
	case []byte:
		return json.Unmarshal(m, out)
	case json.RawMessage:
		return json.Unmarshal(m, out)
	}
	raw, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
