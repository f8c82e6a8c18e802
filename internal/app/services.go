package app

import (
	"gorm.io/gorm"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/platform/deskapi"
	"github.com/crestdesk/crestdesk-backend/internal/realtime"
	"github.com/crestdesk/crestdesk-backend/internal/realtime/bus"
	"github.com/crestdesk/crestdesk-backend/internal/services"
)

type Services struct {
	Notifier   services.Notifier
	Identity   services.IdentityService
	Sync       services.SyncReconciler
	Ingestion  services.IngestionReconciler
	Document   services.DocumentReconciler
	Delegation services.DelegationReconciler
	Workflow   services.WorkflowEventService
	Flags      services.FlagService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, hub *realtime.Hub, realtimeBus bus.Bus, platform deskapi.Client) Services {
	log.Info("Wiring services...")

	var emitter services.Emitter
	if realtimeBus != nil {
		emitter = services.NewBusEmitter(log, realtimeBus)
	} else {
		emitter = services.NewLocalEmitter(hub)
	}
	notifier := services.NewNotifier(emitter)

	identity := services.NewIdentityService(db, log, reposet.Organization, reposet.UserProfile, reposet.Membership, reposet.Conversation)

	return Services{
		Notifier:   notifier,
		Identity:   identity,
		Sync:       services.NewSyncReconciler(db, log, reposet.Connection, reposet.Organization, notifier, cfg.RetryPolicy),
		Ingestion:  services.NewIngestionReconciler(db, log, reposet.IngestionRun, reposet.Organization, notifier, cfg.RetryPolicy),
		Document:   services.NewDocumentReconciler(db, log, reposet.Document, reposet.Organization, notifier, cfg.RetryPolicy),
		Delegation: services.NewDelegationReconciler(db, log, reposet.Delegation, reposet.Connection, notifier, cfg.RetryPolicy),
		Workflow:   services.NewWorkflowEventService(log, identity, notifier),
		Flags:      services.NewFlagService(log, platform, notifier, cfg.FlagCacheSize, cfg.FlagCacheTTL),
	}
}
