package bus

import (
	"context"

	"github.com/crestdesk/crestdesk-backend/internal/realtime"
)

// Bus bridges realtime messages between instances. Publish sends a message
// to every instance (including this one, via the forwarder); StartForwarder
// feeds remote messages into the local hub.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}
