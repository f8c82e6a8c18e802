package app

import (
	"time"

	"github.com/crestdesk/crestdesk-backend/internal/platform/envutil"
	"github.com/crestdesk/crestdesk-backend/internal/retry"
)

type QueueConfig struct {
	DataSourceStatus string
	IngestionStatus  string
	DocumentStatus   string
	Delegation       string
	Workflow         string
}

type Config struct {
	HTTPAddr      string
	Queues        QueueConfig
	RetryPolicy   retry.Policy
	FlagCacheSize int
	FlagCacheTTL  time.Duration
	UseRedisBus   bool
}

func LoadConfig() Config {
	return Config{
		HTTPAddr: ":" + envutil.String("PORT", "8080"),
		Queues: QueueConfig{
			DataSourceStatus: envutil.String("QUEUE_DATA_SOURCE_STATUS", "data_source_status"),
			IngestionStatus:  envutil.String("QUEUE_INGESTION_STATUS", "ingestion.status"),
			DocumentStatus:   envutil.String("QUEUE_DOCUMENT_STATUS", "document.status"),
			Delegation:       envutil.String("QUEUE_DELEGATION", "delegation.responses"),
			Workflow:         envutil.String("QUEUE_WORKFLOW", "workflow.responses"),
		},
		RetryPolicy: retry.Policy{
			InitialDelay: envutil.Duration("RECONCILE_RETRY_INITIAL_DELAY", 500*time.Millisecond),
			Multiplier:   2.0,
			MaxAttempts:  envutil.Int("RECONCILE_RETRY_MAX_ATTEMPTS", 5),
		},
		FlagCacheSize: envutil.Int("FLAG_CACHE_SIZE", 1024),
		FlagCacheTTL:  envutil.Duration("FLAG_CACHE_TTL", 60*time.Second),
		UseRedisBus:   envutil.Bool("USE_REDIS_BUS", false),
	}
}
