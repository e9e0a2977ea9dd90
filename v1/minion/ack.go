package minion

import (
	"context"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/minion/v1/rabbit"
)

// settle acks a successful outcome and emits the response, or nacks a failed
// one and emits a *HandlerError. The requeue hint of the error wins over
// Options.Requeue. Ack and nack failures are emitted wrapping ErrAcknowledge.
func (s *Service) settle(ctx context.Context, msg rabbit.Message, payload any, meta Metadata, o outcome, start time.Time) {
	size := int64(len(meta.Body))

	if o.err == nil {
		if err := msg.AckMsg(); err != nil {
			err = fmt.Errorf("%w: ack: %w", ErrAcknowledge, err)
			s.observeOperation(meta, time.Since(start), err, size)
			s.emitError(ctx, err)
			return
		}
		s.observeOperation(meta, time.Since(start), nil, size)
		s.emitResponse(ctx, o.value)
		return
	}

	requeue := s.opts.Requeue
	if hint, ok := requeueHint(o.err); ok {
		requeue = hint
	}

	herr := &HandlerError{Err: o.err, Payload: payload, Metadata: meta, Requeue: &requeue}
	s.observeOperation(meta, time.Since(start), herr, size)

	if err := msg.NackMsg(requeue); err != nil {
		s.emitError(ctx, fmt.Errorf("%w: nack: %w", ErrAcknowledge, err))
	}
	s.emitError(ctx, herr)
}
