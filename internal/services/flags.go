package services

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/platform/deskapi"
	"github.com/crestdesk/crestdesk-backend/internal/types"
)

// FlagService is a read-through proxy over the platform's feature flags.
// Reads are cache-first with TTL and bounded LRU capacity; an upstream error
// fails closed because flags gate optional behavior. Writes go through to
// the platform and evict the cache key explicitly, because a stale flag must
// not survive an admin change for up to a TTL.
type FlagService interface {
	IsEnabled(ctx context.Context, flag, environment, tenantID string) bool
	UpdateRule(ctx context.Context, flag, environment string, org *types.Organization, enabled bool) error
}

type flagService struct {
	log      *logger.Logger
	client   deskapi.Client
	cache    *expirable.LRU[string, bool]
	notifier Notifier
}

func NewFlagService(log *logger.Logger, client deskapi.Client, notifier Notifier, capacity int, ttl time.Duration) FlagService {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &flagService{
		log:      log.With("service", "FlagService"),
		client:   client,
		cache:    expirable.NewLRU[string, bool](capacity, nil, ttl),
		notifier: notifier,
	}
}

func flagKey(flag, environment, tenantID string) string {
	return fmt.Sprintf("%s|%s|%s", flag, environment, tenantID)
}

func (s *flagService) IsEnabled(ctx context.Context, flag, environment, tenantID string) bool {
	key := flagKey(flag, environment, tenantID)
	if enabled, ok := s.cache.Get(key); ok {
		return enabled
	}
	enabled, err := s.client.GetFlag(ctx, flag, environment, tenantID)
	if err != nil {
		s.log.Warn("Flag fetch failed; failing closed", "flag", flag, "tenantID", tenantID, "error", err)
		return false
	}
	s.cache.Add(key, enabled)
	return enabled
}

func (s *flagService) UpdateRule(ctx context.Context, flag, environment string, org *types.Organization, enabled bool) error {
	if org == nil {
		return fmt.Errorf("%w: organization required", ErrValidation)
	}
	if err := s.client.SetFlagRule(ctx, flag, environment, org.ExternalID, enabled); err != nil {
		return fmt.Errorf("set flag rule %s: %w", flag, err)
	}
	s.cache.Remove(flagKey(flag, environment, org.ExternalID))
	s.notifier.FeatureFlagUpdated(org.ID, flag, enabled)
	return nil
}
