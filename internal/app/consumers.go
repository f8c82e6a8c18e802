package app

import (
	"context"

	"github.com/crestdesk/crestdesk-backend/internal/broker"
	"github.com/crestdesk/crestdesk-backend/internal/consumers"
	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
)

type Consumers struct {
	routers []*consumers.Router
}

func wireConsumers(log *logger.Logger, cfg Config, serviceset Services) Consumers {
	log.Info("Wiring consumers...")
	return Consumers{
		routers: []*consumers.Router{
			consumers.NewRouter(log, consumers.NewDataSourceConsumer(log, cfg.Queues.DataSourceStatus, serviceset.Sync)),
			consumers.NewRouter(log, consumers.NewIngestionConsumer(log, cfg.Queues.IngestionStatus, serviceset.Ingestion)),
			consumers.NewRouter(log, consumers.NewDocumentConsumer(log, cfg.Queues.DocumentStatus, serviceset.Document)),
			consumers.NewRouter(log, consumers.NewDelegationConsumer(log, cfg.Queues.Delegation, serviceset.Delegation)),
			consumers.NewRouter(log, consumers.NewWorkflowConsumer(log, cfg.Queues.Workflow, serviceset.Workflow)),
		},
	}
}

// Start declares each queue and runs one router goroutine per queue. A queue
// that fails to bind is logged and skipped; the rest keep consuming.
func (c Consumers) Start(ctx context.Context, log *logger.Logger, b *broker.Broker) {
	for _, router := range c.routers {
		queue := router.Queue()
		if err := b.DeclareQueue(queue); err != nil {
			log.Error("Failed to declare queue; skipping consumer", "queue", queue, "error", err)
			continue
		}
		deliveries, err := b.Consume(ctx, queue)
		if err != nil {
			log.Error("Failed to start consumer", "queue", queue, "error", err)
			continue
		}
		log.Info("Consumer started", "queue", queue)
		go router.Run(ctx, deliveries)
	}
}
