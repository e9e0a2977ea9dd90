package minion

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"

	"github.com/Aleph-Alpha/minion/v1/rabbit"
)

// ContentTypeJSON is set on messages encoded by a publisher.
const ContentTypeJSON = "application/json"

// Publisher publishes messages to a resolved exchange. key overrides
// Options.Key when non-empty; props are optional and only the first is used.
//
// []byte messages are sent as is. Everything else is JSON encoded.
type Publisher func(ctx context.Context, message any, key string, props ...Properties) error

// Publish calls p.
func (p Publisher) Publish(ctx context.Context, message any, key string, props ...Properties) error {
	return p(ctx, message, key, props...)
}

// NewPublisher resolves settings into a Publisher. The exchange is bound on the
// first publish.
func NewPublisher(settings Settings, opts ...Option) (Publisher, error) {
	return newPublisher(PublisherConfig{Settings: settings}, Settings{}, newConfig(opts))
}

func newPublisher(target PublisherConfig, override Settings, cfg config) (Publisher, error) {
	resolved, err := Resolve(target, override)
	if err != nil {
		return nil, err
	}
	b := newBinding(resolved, cfg.provider)

	return func(ctx context.Context, message any, key string, props ...Properties) error {
		ex, err := b.bindExchange(ctx)
		if err != nil {
			return err
		}
		return publish(ctx, ex, resolved, cfg.tracer, message, key, props)
	}, nil
}

func publish(ctx context.Context, ex rabbit.Exchange, opts Options, tracer Tracer, message any, key string, props []Properties) error {
	var p Properties
	if len(props) > 0 {
		p = props[0]
	}

	p.Key = key
	if p.Key == "" {
		p.Key = opts.Key
	}

	body, contentType, err := encode(message)
	if err != nil {
		return err
	}
	if p.ContentType == "" {
		p.ContentType = contentType
	}

	if tracer != nil {
		carrier := tracer.GetCarrier(ctx)
		if len(carrier) > 0 {
			headers := make(map[string]interface{}, len(p.Headers)+len(carrier))
			for k, v := range p.Headers {
				headers[k] = v
			}
			for k, v := range carrier {
				headers[k] = v
			}
			p.Headers = headers
		}
	}

	return ex.Publish(ctx, body, p)
}

func encode(message any) ([]byte, string, error) {
	switch m := message.(type) {
	case []byte:
		return m, "", nil
	case json.RawMessage:
		return m, ContentTypeJSON, nil
	}
	body, err := json.Marshal(message)
	if err != nil {
		return nil, "", fmt.Errorf("encoding message: %w", err)
	}
	return body, ContentTypeJSON, nil
}

// decode returns the JSON value of a JSON body and the raw bytes otherwise.
func decode(meta Metadata) (any, error) {
	if mediaType, _, _ := mime.ParseMediaType(meta.ContentType); mediaType != ContentTypeJSON {
		return meta.Body, nil
	}
	var message any
	if err := json.Unmarshal(meta.Body, &message); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return message, nil
}
