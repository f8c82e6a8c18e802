package consumers

import (
	"context"
	"errors"

	"github.com/crestdesk/crestdesk-backend/internal/broker"
	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/services"
)

var (
	// ErrMalformed marks a body that failed to parse or is missing required
	// correlation fields. Rejected without requeue; requeueing would loop the
	// same broken payload forever.
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownKind marks an unrecognized type/action discriminator. Kept
	// distinct from ErrMalformed so schema drift shows up loudly in logs.
	ErrUnknownKind = errors.New("unknown message kind")
)

// Handler is one queue's message handler. Handle owns all business effects;
// the router owns the ack/reject decision.
type Handler interface {
	Queue() string
	Handle(ctx context.Context, body []byte) error
}

// Router is the single boundary that converts handler outcomes into broker
// acknowledgements. Nothing crosses back to the broker client except ack or
// reject-without-requeue; broker redelivery is reserved for infrastructure
// failures (consumer crash before ack), not business retries.
type Router struct {
	log     *logger.Logger
	handler Handler
}

func NewRouter(log *logger.Logger, handler Handler) *Router {
	return &Router{
		log:     log.With("consumer", handler.Queue()),
		handler: handler,
	}
}

func (r *Router) Queue() string {
	return r.handler.Queue()
}

// Run processes deliveries one at a time until the channel closes or the
// context is done. Single-flight per queue; concurrency comes from running
// multiple queues' routers side by side.
func (r *Router) Run(ctx context.Context, deliveries <-chan broker.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			r.dispatch(ctx, delivery)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, delivery broker.Delivery) {
	err := r.handler.Handle(ctx, delivery.Body)
	if err == nil {
		if ackErr := delivery.Ack(); ackErr != nil {
			r.log.Error("Failed to ack message", "error", ackErr)
		}
		return
	}

	switch {
	case errors.Is(err, ErrUnknownKind):
		r.log.Error("Unknown message kind; rejecting", "error", err)
	case errors.Is(err, ErrMalformed), errors.Is(err, services.ErrValidation):
		r.log.Warn("Invalid message; rejecting", "error", err)
	default:
		r.log.Error("Handler failed; rejecting", "error", err)
	}
	if rejectErr := delivery.Reject(); rejectErr != nil {
		r.log.Error("Failed to reject message", "error", rejectErr)
	}
}
