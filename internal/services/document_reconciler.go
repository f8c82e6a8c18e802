package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/repos"
	"github.com/crestdesk/crestdesk-backend/internal/retry"
	"github.com/crestdesk/crestdesk-backend/internal/types"
)

const (
	DocProcessingCompleted = "processing_completed"
	DocProcessingFailed    = "processing_failed"
)

type DocumentStatusMessage struct {
	BlobMetadataID string
	TenantID       string
	Status         string
	Error          string
}

type DocumentReconciler interface {
	ApplyProcessing(ctx context.Context, msg DocumentStatusMessage) error
}

type documentReconciler struct {
	db        *gorm.DB
	log       *logger.Logger
	documents repos.DocumentRepo
	orgs      repos.OrganizationRepo
	notifier  Notifier
	policy    retry.Policy
}

func NewDocumentReconciler(db *gorm.DB, log *logger.Logger, documents repos.DocumentRepo, orgs repos.OrganizationRepo, notifier Notifier, policy retry.Policy) DocumentReconciler {
	return &documentReconciler{
		db:        db,
		log:       log.With("service", "DocumentReconciler"),
		documents: documents,
		orgs:      orgs,
		notifier:  notifier,
		policy:    policy,
	}
}

func (s *documentReconciler) ApplyProcessing(ctx context.Context, msg DocumentStatusMessage) error {
	var document *types.Document
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		d, err := s.documents.GetByBlobMetadataID(ctx, nil, msg.BlobMetadataID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("document blob %s: %w", msg.BlobMetadataID, retry.ErrNotYetVisible)
		}
		document = d
		return nil
	})
	if err != nil {
		return err
	}

	org, err := s.orgs.GetByID(ctx, nil, document.OrganizationID)
	if err != nil {
		return fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil || org.ExternalID != msg.TenantID {
		return fmt.Errorf("%w: document %s does not belong to tenant %s", ErrValidation, document.ID, msg.TenantID)
	}

	now := time.Now()
	var rows int64
	var toStatus string

	switch msg.Status {
	case DocProcessingCompleted:
		toStatus = types.DocumentStatusReady
		rows, err = s.documents.TransitionStatus(ctx, nil, document.ID,
			[]string{types.DocumentStatusProcessing},
			types.DocumentStatusReady,
			map[string]interface{}{"processed_at": now, "last_error": ""})
	case DocProcessingFailed:
		toStatus = types.DocumentStatusFailed
		rows, err = s.documents.TransitionStatus(ctx, nil, document.ID,
			[]string{types.DocumentStatusProcessing},
			types.DocumentStatusFailed,
			map[string]interface{}{"last_error": msg.Error})
	default:
		return fmt.Errorf("%w: unknown document status %q", ErrValidation, msg.Status)
	}
	if err != nil {
		return fmt.Errorf("transition document %s to %s: %w", document.ID, toStatus, err)
	}
	if rows == 0 {
		s.log.Info("Document transition was a no-op; state already advanced",
			"documentID", document.ID, "status", msg.Status)
		return nil
	}
	s.notifier.DocumentStatusChanged(document.OrganizationID, document.ID, document.BlobMetadataID, toStatus)
	return nil
}
