package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/repos"
	"github.com/crestdesk/crestdesk-backend/internal/types"
)

type ResolveIdentityInput struct {
	TenantID    string
	TenantName  string
	UserID      string
	Email       string
	DisplayName string
}

type Identity struct {
	Org  *types.Organization
	User *types.UserProfile
}

// IdentityService provisions internal identity rows just in time from
// externally issued tenant/user identifiers. Resolution is idempotent under
// concurrency: the create path is check-then-insert-on-conflict-do-nothing
// followed by a re-select of the canonical row.
type IdentityService interface {
	Resolve(ctx context.Context, in ResolveIdentityInput) (*Identity, error)
	ResolveConversation(ctx context.Context, identity *Identity, explicitID uuid.UUID, activityID string) (*types.Conversation, error)
}

type identityService struct {
	db            *gorm.DB
	log           *logger.Logger
	orgs          repos.OrganizationRepo
	users         repos.UserProfileRepo
	members       repos.MembershipRepo
	conversations repos.ConversationRepo
}

func NewIdentityService(db *gorm.DB, log *logger.Logger, orgs repos.OrganizationRepo, users repos.UserProfileRepo, members repos.MembershipRepo, conversations repos.ConversationRepo) IdentityService {
	return &identityService{
		db:            db,
		log:           log.With("service", "IdentityService"),
		orgs:          orgs,
		users:         users,
		members:       members,
		conversations: conversations,
	}
}

func (s *identityService) Resolve(ctx context.Context, in ResolveIdentityInput) (*Identity, error) {
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id required", ErrValidation)
	}
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user_id required", ErrValidation)
	}

	org, err := s.resolveOrganization(ctx, in.TenantID, in.TenantName)
	if err != nil {
		return nil, err
	}
	user, err := s.resolveUser(ctx, in.UserID, in.Email, in.DisplayName)
	if err != nil {
		return nil, err
	}

	// Ensured on every call, never only on first creation.
	if err := s.members.Ensure(ctx, nil, org.ID, user.UserID, types.MemberRoleMember); err != nil {
		return nil, fmt.Errorf("ensure membership: %w", err)
	}

	return &Identity{Org: org, User: user}, nil
}

func (s *identityService) resolveOrganization(ctx context.Context, tenantID, tenantName string) (*types.Organization, error) {
	org, err := s.orgs.GetByExternalID(ctx, nil, tenantID)
	if err != nil {
		return nil, fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil {
		name := strings.TrimSpace(tenantName)
		if name == "" {
			name = tenantID
		}
		candidate := &types.Organization{
			ID:         uuid.New(),
			ExternalID: tenantID,
			Name:       name,
		}
		if err := s.orgs.CreateIfAbsent(ctx, nil, candidate); err != nil {
			return nil, fmt.Errorf("create organization: %w", err)
		}
		// Re-select: a concurrent first-contact message may have won the insert.
		org, err = s.orgs.GetByExternalID(ctx, nil, tenantID)
		if err != nil {
			return nil, fmt.Errorf("reselect organization: %w", err)
		}
		if org == nil {
			return nil, fmt.Errorf("organization %s vanished after upsert", tenantID)
		}
		s.log.Info("Provisioned organization", "externalID", tenantID, "orgID", org.ID)
		return org, nil
	}

	if name := strings.TrimSpace(tenantName); name != "" && name != org.Name {
		if err := s.orgs.UpdateName(ctx, nil, org.ID, name); err != nil {
			return nil, fmt.Errorf("update organization name: %w", err)
		}
		org.Name = name
	}
	return org, nil
}

func (s *identityService) resolveUser(ctx context.Context, externalUserID, email, displayName string) (*types.UserProfile, error) {
	user, err := s.users.GetByExternalID(ctx, nil, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		candidate := &types.UserProfile{
			UserID:      uuid.New(),
			ExternalID:  externalUserID,
			Email:       strings.TrimSpace(email),
			DisplayName: strings.TrimSpace(displayName),
		}
		if err := s.users.CreateIfAbsent(ctx, nil, candidate); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		user, err = s.users.GetByExternalID(ctx, nil, externalUserID)
		if err != nil {
			return nil, fmt.Errorf("reselect user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("user %s vanished after upsert", externalUserID)
		}
		s.log.Info("Provisioned user", "externalID", externalUserID, "userID", user.UserID)
		return user, nil
	}

	if name := strings.TrimSpace(displayName); name != "" && name != user.DisplayName {
		if err := s.users.UpdateDisplayName(ctx, nil, user.UserID, name); err != nil {
			return nil, fmt.Errorf("update display name: %w", err)
		}
		user.DisplayName = name
	}
	return user, nil
}

// ResolveConversation reuses an explicit id only after verifying ownership.
// A foreign or unknown explicit id is a hard ErrNotFound: silently creating a
// fresh conversation instead would hide cross-tenant id leaks.
func (s *identityService) ResolveConversation(ctx context.Context, identity *Identity, explicitID uuid.UUID, activityID string) (*types.Conversation, error) {
	if identity == nil || identity.Org == nil || identity.User == nil {
		return nil, fmt.Errorf("%w: identity required", ErrValidation)
	}
	activityID = strings.TrimSpace(activityID)

	if explicitID != uuid.Nil {
		conversation, err := s.conversations.GetOwned(ctx, nil, explicitID, identity.Org.ID, identity.User.UserID)
		if err != nil {
			return nil, fmt.Errorf("lookup conversation: %w", err)
		}
		if conversation == nil {
			return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, explicitID)
		}
		return conversation, nil
	}

	if activityID != "" {
		conversation, err := s.conversations.GetByActivity(ctx, nil, identity.Org.ID, activityID)
		if err != nil {
			return nil, fmt.Errorf("lookup conversation by activity: %w", err)
		}
		if conversation != nil {
			return conversation, nil
		}
	}

	conversation := &types.Conversation{
		ID:             uuid.New(),
		OrganizationID: identity.Org.ID,
		UserID:         identity.User.UserID,
	}
	if _, err := s.conversations.Create(ctx, nil, conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if activityID != "" {
		if err := s.conversations.LinkActivity(ctx, nil, identity.Org.ID, activityID, conversation.ID); err != nil {
			return nil, fmt.Errorf("link activity: %w", err)
		}
	}
	return conversation, nil
}
