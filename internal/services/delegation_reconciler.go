package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/repos"
	"github.com/crestdesk/crestdesk-backend/internal/retry"
	"github.com/crestdesk/crestdesk-backend/internal/types"
)

const (
	DelegationResultVerified = "verified"
	DelegationResultFailed   = "failed"
)

type DelegationResultMessage struct {
	DelegationID uuid.UUID
	Status       string
	Error        string
	Settings     string
}

// DelegationReconciler applies delegation verification results. The verified
// path is a single transaction: token update, audit log insert, and the
// owning connection's settings update commit or roll back together. The
// failed path records the failure and audit entry only; it must never touch
// live connection configuration.
type DelegationReconciler interface {
	ApplyResult(ctx context.Context, msg DelegationResultMessage) error
}

type delegationReconciler struct {
	db          *gorm.DB
	log         *logger.Logger
	delegations repos.DelegationRepo
	connections repos.ConnectionRepo
	notifier    Notifier
	policy      retry.Policy
}

func NewDelegationReconciler(db *gorm.DB, log *logger.Logger, delegations repos.DelegationRepo, connections repos.ConnectionRepo, notifier Notifier, policy retry.Policy) DelegationReconciler {
	return &delegationReconciler{
		db:          db,
		log:         log.With("service", "DelegationReconciler"),
		delegations: delegations,
		connections: connections,
		notifier:    notifier,
		policy:      policy,
	}
}

func (s *delegationReconciler) ApplyResult(ctx context.Context, msg DelegationResultMessage) error {
	var token *types.DelegationToken
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		t, err := s.delegations.GetByID(ctx, nil, msg.DelegationID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("delegation %s: %w", msg.DelegationID, retry.ErrNotYetVisible)
		}
		token = t
		return nil
	})
	if err != nil {
		return err
	}

	switch msg.Status {
	case DelegationResultVerified:
		return s.applyVerified(ctx, token, msg)
	case DelegationResultFailed:
		return s.applyFailed(ctx, token, msg)
	default:
		return fmt.Errorf("%w: unknown delegation status %q", ErrValidation, msg.Status)
	}
}

func (s *delegationReconciler) applyVerified(ctx context.Context, token *types.DelegationToken, msg DelegationResultMessage) error {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.delegations.MarkVerified(ctx, tx, token.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		changed = true
		if err := s.delegations.InsertAudit(ctx, tx, &types.DelegationAuditLog{
			ID:             uuid.New(),
			DelegationID:   token.ID,
			OrganizationID: token.OrganizationID,
			Outcome:        DelegationResultVerified,
		}); err != nil {
			return err
		}
		settings := msg.Settings
		if settings == "" {
			settings = token.Settings
		}
		if settings != "" {
			if err := s.connections.UpdateSettings(ctx, tx, token.ConnectionID, settings); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("verify delegation %s: %w", token.ID, err)
	}
	if !changed {
		s.log.Info("Delegation already resolved", "delegationID", token.ID, "status", DelegationResultVerified)
		return nil
	}
	s.notifier.DelegationStatusChanged(token.OrganizationID, token.ID, types.DelegationStatusVerified)
	return nil
}

func (s *delegationReconciler) applyFailed(ctx context.Context, token *types.DelegationToken, msg DelegationResultMessage) error {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.delegations.MarkFailed(ctx, tx, token.ID, msg.Error)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		changed = true
		return s.delegations.InsertAudit(ctx, tx, &types.DelegationAuditLog{
			ID:             uuid.New(),
			DelegationID:   token.ID,
			OrganizationID: token.OrganizationID,
			Outcome:        DelegationResultFailed,
			Detail:         msg.Error,
		})
	})
	if err != nil {
		return fmt.Errorf("fail delegation %s: %w", token.ID, err)
	}
	if !changed {
		s.log.Info("Delegation already resolved", "delegationID", token.ID, "status", DelegationResultFailed)
		return nil
	}
	s.notifier.DelegationStatusChanged(token.OrganizationID, token.ID, types.DelegationStatusFailed)
	return nil
}
