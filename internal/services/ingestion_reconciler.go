package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/repos"
	"github.com/crestdesk/crestdesk-backend/internal/retry"
	"github.com/crestdesk/crestdesk-backend/internal/types"
)

type IngestionStatusMessage struct {
	RunID            uuid.UUID
	TenantID         string
	Status           string
	RecordsProcessed *int64
	RecordsFailed    *int64
	Error            string
}

// IngestionReconciler tracks ticket ingestion runs. Status transitions are
// guarded; record counts carry no prior-state guard but are written and fanned
// out only when they differ from the loaded row, so a redelivered message with
// identical counts is a benign no-op.
type IngestionReconciler interface {
	ApplyStatus(ctx context.Context, msg IngestionStatusMessage) error
}

type ingestionReconciler struct {
	db       *gorm.DB
	log      *logger.Logger
	runs     repos.IngestionRunRepo
	orgs     repos.OrganizationRepo
	notifier Notifier
	policy   retry.Policy
}

func NewIngestionReconciler(db *gorm.DB, log *logger.Logger, runs repos.IngestionRunRepo, orgs repos.OrganizationRepo, notifier Notifier, policy retry.Policy) IngestionReconciler {
	return &ingestionReconciler{
		db:       db,
		log:      log.With("service", "IngestionReconciler"),
		runs:     runs,
		orgs:     orgs,
		notifier: notifier,
		policy:   policy,
	}
}

func (s *ingestionReconciler) lookupRun(ctx context.Context, runID uuid.UUID, tenantID string) (*types.IngestionRun, error) {
	var run *types.IngestionRun
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		r, err := s.runs.GetByID(ctx, nil, runID)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("ingestion run %s: %w", runID, retry.ErrNotYetVisible)
		}
		run = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	org, err := s.orgs.GetByID(ctx, nil, run.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil || org.ExternalID != tenantID {
		return nil, fmt.Errorf("%w: ingestion run %s does not belong to tenant %s", ErrValidation, run.ID, tenantID)
	}
	return run, nil
}

func (s *ingestionReconciler) ApplyStatus(ctx context.Context, msg IngestionStatusMessage) error {
	run, err := s.lookupRun(ctx, msg.RunID, msg.TenantID)
	if err != nil {
		return err
	}

	now := time.Now()
	var rows int64

	switch msg.Status {
	case types.IngestionStatusRunning:
		rows, err = s.runs.TransitionStatus(ctx, nil, run.ID,
			[]string{types.IngestionStatusPending},
			types.IngestionStatusRunning,
			map[string]interface{}{"started_at": now})
	case types.IngestionStatusCompleted:
		rows, err = s.runs.TransitionStatus(ctx, nil, run.ID,
			[]string{types.IngestionStatusPending, types.IngestionStatusRunning},
			types.IngestionStatusCompleted,
			map[string]interface{}{"completed_at": now, "last_error": ""})
	case types.IngestionStatusFailed:
		rows, err = s.runs.TransitionStatus(ctx, nil, run.ID,
			[]string{types.IngestionStatusPending, types.IngestionStatusRunning},
			types.IngestionStatusFailed,
			map[string]interface{}{"completed_at": now, "last_error": msg.Error})
	default:
		return fmt.Errorf("%w: unknown ingestion status %q", ErrValidation, msg.Status)
	}
	if err != nil {
		return fmt.Errorf("transition ingestion run %s to %s: %w", run.ID, msg.Status, err)
	}

	if msg.RecordsProcessed != nil || msg.RecordsFailed != nil {
		processed := run.RecordsProcessed
		failed := run.RecordsFailed
		if msg.RecordsProcessed != nil {
			processed = *msg.RecordsProcessed
		}
		if msg.RecordsFailed != nil {
			failed = *msg.RecordsFailed
		}
		// Counts identical to the loaded row mean a redelivery; writing and
		// fanning out again would push a second event for zero state change.
		if processed != run.RecordsProcessed || failed != run.RecordsFailed {
			if err := s.runs.UpdateProgress(ctx, nil, run.ID, processed, failed); err != nil {
				return fmt.Errorf("update progress on ingestion run %s: %w", run.ID, err)
			}
			s.notifier.IngestionProgress(run.OrganizationID, run.ID, processed, failed)
		}
	}

	if rows == 0 {
		s.log.Info("Ingestion transition was a no-op; state already advanced",
			"runID", run.ID, "status", msg.Status)
		return nil
	}
	s.notifier.IngestionStatusChanged(run.OrganizationID, run.ID, msg.Status)
	return nil
}
