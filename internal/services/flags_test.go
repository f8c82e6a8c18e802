package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/platform/deskapi"
	"github.com/crestdesk/crestdesk-backend/internal/types"
)

type fakePlatform struct {
	flags        map[string]bool
	getCalls     int
	setCalls     int
	getFlagErr   error
	setRuleError error
}

func (f *fakePlatform) ExecuteWebhook(ctx context.Context, req deskapi.WebhookRequest) (*deskapi.WebhookResult, error) {
	return &deskapi.WebhookResult{StatusCode: 200}, nil
}

func (f *fakePlatform) GetFlag(ctx context.Context, flag, environment, tenantID string) (bool, error) {
	f.getCalls++
	if f.getFlagErr != nil {
		return false, f.getFlagErr
	}
	return f.flags[flag+"|"+environment+"|"+tenantID], nil
}

func (f *fakePlatform) SetFlagRule(ctx context.Context, flag, environment, tenantID string, enabled bool) error {
	f.setCalls++
	if f.setRuleError != nil {
		return f.setRuleError
	}
	if f.flags == nil {
		f.flags = map[string]bool{}
	}
	f.flags[flag+"|"+environment+"|"+tenantID] = enabled
	return nil
}

func (f *fakePlatform) GetSessionConfig(ctx context.Context, sessionKey string) (*deskapi.SessionConfig, error) {
	return nil, deskapi.ErrConfigNotFound
}

func newFlagFixture(t *testing.T, platform *fakePlatform, ttl time.Duration) (FlagService, *fakeNotifier) {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	n := &fakeNotifier{}
	return NewFlagService(log, platform, n, 16, ttl), n
}

func TestFlagService_CachesWithinTTL(t *testing.T) {
	platform := &fakePlatform{flags: map[string]bool{"dark_mode|prod|tenant-1": true}}
	svc, _ := newFlagFixture(t, platform, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !svc.IsEnabled(ctx, "dark_mode", "prod", "tenant-1") {
			t.Fatalf("call %d: expected enabled", i+1)
		}
	}
	if platform.getCalls != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", platform.getCalls)
	}
}

func TestFlagService_KeysAreScoped(t *testing.T) {
	platform := &fakePlatform{flags: map[string]bool{"dark_mode|prod|tenant-1": true}}
	svc, _ := newFlagFixture(t, platform, time.Minute)
	ctx := context.Background()

	if !svc.IsEnabled(ctx, "dark_mode", "prod", "tenant-1") {
		t.Fatal("expected enabled for tenant-1")
	}
	if svc.IsEnabled(ctx, "dark_mode", "prod", "tenant-2") {
		t.Fatal("tenant-2 must not inherit tenant-1's value")
	}
	if svc.IsEnabled(ctx, "dark_mode", "staging", "tenant-1") {
		t.Fatal("staging must not inherit prod's value")
	}
	if platform.getCalls != 3 {
		t.Fatalf("expected 3 upstream fetches, got %d", platform.getCalls)
	}
}

func TestFlagService_FailsClosedWithoutCaching(t *testing.T) {
	platform := &fakePlatform{getFlagErr: errors.New("platform down")}
	svc, _ := newFlagFixture(t, platform, time.Minute)
	ctx := context.Background()

	if svc.IsEnabled(ctx, "dark_mode", "prod", "tenant-1") {
		t.Fatal("upstream failure must read as disabled")
	}
	// Errors are not cached; the next read probes upstream again.
	if svc.IsEnabled(ctx, "dark_mode", "prod", "tenant-1") {
		t.Fatal("still disabled")
	}
	if platform.getCalls != 2 {
		t.Fatalf("expected 2 upstream fetches, got %d", platform.getCalls)
	}
}

func TestFlagService_UpdateRuleEvictsAndNotifies(t *testing.T) {
	platform := &fakePlatform{flags: map[string]bool{"dark_mode|prod|tenant-1": false}}
	svc, n := newFlagFixture(t, platform, time.Minute)
	ctx := context.Background()
	org := &types.Organization{ID: uuid.New(), ExternalID: "tenant-1", Name: "Acme"}

	if svc.IsEnabled(ctx, "dark_mode", "prod", "tenant-1") {
		t.Fatal("expected disabled before update")
	}
	if err := svc.UpdateRule(ctx, "dark_mode", "prod", org, true); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	// The stale cached value must not survive the admin change.
	if !svc.IsEnabled(ctx, "dark_mode", "prod", "tenant-1") {
		t.Fatal("expected enabled after update")
	}
	if platform.getCalls != 2 {
		t.Fatalf("expected eviction to force a refetch, got %d fetches", platform.getCalls)
	}

	calls := n.byMethod("FeatureFlagUpdated")
	if len(calls) != 1 || calls[0].org != org.ID {
		t.Fatalf("expected one flag notification to the org, got %v", calls)
	}
}

func TestFlagService_UpdateRuleFailureLeavesCache(t *testing.T) {
	platform := &fakePlatform{flags: map[string]bool{"dark_mode|prod|tenant-1": true}}
	svc, n := newFlagFixture(t, platform, time.Minute)
	ctx := context.Background()

	if err := svc.UpdateRule(ctx, "dark_mode", "prod", nil, true); !errors.Is(err, ErrValidation) {
		t.Fatalf("nil org: expected ErrValidation, got %v", err)
	}

	platform.setRuleError = errors.New("platform down")
	org := &types.Organization{ID: uuid.New(), ExternalID: "tenant-1", Name: "Acme"}
	if err := svc.UpdateRule(ctx, "dark_mode", "prod", org, false); err == nil {
		t.Fatal("expected upstream error to surface")
	}
	if len(n.byMethod("FeatureFlagUpdated")) != 0 {
		t.Fatal("failed update must not notify")
	}
}
