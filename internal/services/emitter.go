package services

import (
	"context"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/realtime"
	"github.com/crestdesk/crestdesk-backend/internal/realtime/bus"
)

// Emitter abstracts where a realtime message goes: straight to the local hub
// in single-instance deployments, or onto the bus when multiple instances
// share subscribers. Emit never fails the caller.
type Emitter interface {
	Emit(ctx context.Context, msg realtime.Message)
}

type localEmitter struct {
	hub *realtime.Hub
}

func NewLocalEmitter(hub *realtime.Hub) Emitter {
	return &localEmitter{hub: hub}
}

func (e *localEmitter) Emit(ctx context.Context, msg realtime.Message) {
	if e == nil || e.hub == nil {
		return
	}
	e.hub.Broadcast(msg)
}

type busEmitter struct {
	log *logger.Logger
	bus bus.Bus
}

// NewBusEmitter publishes to the bus only; the forwarder feeds every
// instance's hub, this one included, so local broadcast would double-send.
func NewBusEmitter(log *logger.Logger, b bus.Bus) Emitter {
	return &busEmitter{log: log.With("service", "BusEmitter"), bus: b}
}

func (e *busEmitter) Emit(ctx context.Context, msg realtime.Message) {
	if e == nil || e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, msg); err != nil {
		e.log.Warn("Failed to publish realtime message", "channel", msg.Channel, "type", msg.Type, "error", err)
	}
}
