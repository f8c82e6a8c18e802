package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crestdesk/crestdesk-backend/internal/types"
)

func newIdentityService(e *testEnv) IdentityService {
	return NewIdentityService(e.db, e.log, e.orgs, e.users, e.members, e.convs)
}

func TestIdentity_ResolveProvisionsOnFirstContact(t *testing.T) {
	e := newTestEnv(t)
	svc := newIdentityService(e)
	ctx := context.Background()

	identity, err := svc.Resolve(ctx, ResolveIdentityInput{
		TenantID:    "tenant-1",
		TenantName:  "Acme Support",
		UserID:      "ext-user-1",
		Email:       "agent@acme.test",
		DisplayName: "Agent One",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if identity.Org.ExternalID != "tenant-1" || identity.Org.Name != "Acme Support" {
		t.Fatalf("unexpected org %+v", identity.Org)
	}
	if identity.User.ExternalID != "ext-user-1" || identity.User.DisplayName != "Agent One" {
		t.Fatalf("unexpected user %+v", identity.User)
	}

	exists, err := e.members.Exists(ctx, nil, identity.Org.ID, identity.User.UserID)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("membership not provisioned")
	}
}

func TestIdentity_ResolveIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	svc := newIdentityService(e)
	ctx := context.Background()

	in := ResolveIdentityInput{TenantID: "tenant-1", UserID: "ext-user-1"}
	first, err := svc.Resolve(ctx, in)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := svc.Resolve(ctx, in)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if first.Org.ID != second.Org.ID || first.User.UserID != second.User.UserID {
		t.Fatal("repeat resolution produced different rows")
	}

	var orgCount, userCount, memberCount int64
	e.db.Model(&types.Organization{}).Count(&orgCount)
	e.db.Model(&types.UserProfile{}).Count(&userCount)
	e.db.Model(&types.OrganizationMember{}).Count(&memberCount)
	if orgCount != 1 || userCount != 1 || memberCount != 1 {
		t.Fatalf("expected 1/1/1 rows, got %d/%d/%d", orgCount, userCount, memberCount)
	}
}

func TestIdentity_ResolveRepairsDeletedMembership(t *testing.T) {
	e := newTestEnv(t)
	svc := newIdentityService(e)
	ctx := context.Background()

	in := ResolveIdentityInput{TenantID: "tenant-1", UserID: "ext-user-1"}
	identity, err := svc.Resolve(ctx, in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Manually corrected / legacy data can lose the membership row.
	if err := e.db.Where("organization_id = ? AND user_id = ?", identity.Org.ID, identity.User.UserID).
		Delete(&types.OrganizationMember{}).Error; err != nil {
		t.Fatalf("delete membership: %v", err)
	}

	if _, err := svc.Resolve(ctx, in); err != nil {
		t.Fatalf("repeat Resolve: %v", err)
	}
	exists, err := e.members.Exists(ctx, nil, identity.Org.ID, identity.User.UserID)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("membership must be re-ensured on every resolution")
	}
}

func TestIdentity_ResolveUpdatesDriftedNames(t *testing.T) {
	e := newTestEnv(t)
	svc := newIdentityService(e)
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, ResolveIdentityInput{
		TenantID: "tenant-1", TenantName: "Acme", UserID: "ext-user-1", DisplayName: "Agent",
	}); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	identity, err := svc.Resolve(ctx, ResolveIdentityInput{
		TenantID: "tenant-1", TenantName: "Acme Corp", UserID: "ext-user-1", DisplayName: "Agent One",
	})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if identity.Org.Name != "Acme Corp" {
		t.Fatalf("org name not updated, got %q", identity.Org.Name)
	}
	if identity.User.DisplayName != "Agent One" {
		t.Fatalf("display name not updated, got %q", identity.User.DisplayName)
	}
}

func TestIdentity_ResolveWithoutDriftIssuesNoUpdates(t *testing.T) {
	e := newTestEnv(t)
	svc := newIdentityService(e)
	ctx := context.Background()

	in := ResolveIdentityInput{
		TenantID: "tenant-1", TenantName: "Acme", UserID: "ext-user-1", DisplayName: "Agent",
	}
	if _, err := svc.Resolve(ctx, in); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	updates := 0
	if err := e.db.Callback().Update().After("gorm:update").Register("track_updates", func(tx *gorm.DB) {
		updates++
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	// Identical names on a repeat resolution must not touch the rows.
	if _, err := svc.Resolve(ctx, in); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if updates != 0 {
		t.Fatalf("expected zero UPDATE statements, got %d", updates)
	}
}

func TestIdentity_ConcurrentResolveCreatesSingleRows(t *testing.T) {
	e := newTestEnv(t)
	svc := newIdentityService(e)
	ctx := context.Background()

	// sqlite serializes writers; one pooled connection avoids lock errors
	// while both goroutines still race through the service path.
	sqlDB, err := e.db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	in := ResolveIdentityInput{TenantID: "tenant-1", UserID: "ext-user-1"}
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Resolve(ctx, in)
			errs <- err
		}()
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent Resolve: %v", err)
		}
	}

	var orgCount, userCount, memberCount int64
	e.db.Model(&types.Organization{}).Count(&orgCount)
	e.db.Model(&types.UserProfile{}).Count(&userCount)
	e.db.Model(&types.OrganizationMember{}).Count(&memberCount)
	if orgCount != 1 || userCount != 1 || memberCount != 1 {
		t.Fatalf("expected 1/1/1 rows after the race, got %d/%d/%d", orgCount, userCount, memberCount)
	}
}

func TestIdentity_ResolveValidatesInput(t *testing.T) {
	e := newTestEnv(t)
	svc := newIdentityService(e)
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, ResolveIdentityInput{UserID: "ext-user-1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing tenant: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Resolve(ctx, ResolveIdentityInput{TenantID: "tenant-1", UserID: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank user: expected ErrValidation, got %v", err)
	}
}

func TestIdentity_ResolveConversationExplicitID(t *testing.T) {
	e := newTestEnv(t)
	svc := newIdentityService(e)
	ctx := context.Background()

	identity, err := svc.Resolve(ctx, ResolveIdentityInput{TenantID: "tenant-1", UserID: "ext-user-1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	owned := &types.Conversation{ID: uuid.New(), OrganizationID: identity.Org.ID, UserID: identity.User.UserID}
	if err := e.db.Create(owned).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	got, err := svc.ResolveConversation(ctx, identity, owned.ID, "")
	if err != nil {
		t.Fatalf("ResolveConversation: %v", err)
	}
	if got.ID != owned.ID {
		t.Fatalf("expected owned conversation, got %+v", got)
	}

	// A foreign explicit id must fail hard, never fall back to a fresh one.
	if _, err := svc.ResolveConversation(ctx, identity, uuid.New(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign id: expected ErrNotFound, got %v", err)
	}
	var count int64
	e.db.Model(&types.Conversation{}).Count(&count)
	if count != 1 {
		t.Fatalf("foreign id must not create a conversation, got %d rows", count)
	}
}

func TestIdentity_ResolveConversationByActivity(t *testing.T) {
	e := newTestEnv(t)
	svc := newIdentityService(e)
	ctx := context.Background()

	identity, err := svc.Resolve(ctx, ResolveIdentityInput{TenantID: "tenant-1", UserID: "ext-user-1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	first, err := svc.ResolveConversation(ctx, identity, uuid.Nil, "act-1")
	if err != nil {
		t.Fatalf("first ResolveConversation: %v", err)
	}
	second, err := svc.ResolveConversation(ctx, identity, uuid.Nil, "act-1")
	if err != nil {
		t.Fatalf("second ResolveConversation: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("same activity id must resolve the same conversation")
	}

	fresh, err := svc.ResolveConversation(ctx, identity, uuid.Nil, "")
	if err != nil {
		t.Fatalf("fresh ResolveConversation: %v", err)
	}
	if fresh.ID == first.ID {
		t.Fatal("no correlation hints must create a fresh conversation")
	}
}
