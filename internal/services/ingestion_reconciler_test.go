package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/retry"
	"github.com/crestdesk/crestdesk-backend/internal/types"
)

func newIngestionReconciler(e *testEnv, policy retry.Policy) IngestionReconciler {
	return NewIngestionReconciler(e.db, e.log, e.runs, e.orgs, e.notifier, policy)
}

func (e *testEnv) seedRun(t *testing.T, orgID uuid.UUID, status string) *types.IngestionRun {
	t.Helper()
	run := &types.IngestionRun{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ConnectionID:   uuid.New(),
		Status:         status,
	}
	if err := e.db.Create(run).Error; err != nil {
		t.Fatalf("seed ingestion run: %v", err)
	}
	return run
}

func int64ptr(v int64) *int64 { return &v }

func TestIngestionReconciler_RunningTransition(t *testing.T) {
	e := newTestEnv(t)
	svc := newIngestionReconciler(e, instantPolicy())
	ctx := context.Background()

	org := e.seedOrg(t, "tenant-1")
	run := e.seedRun(t, org.ID, types.IngestionStatusPending)

	err := svc.ApplyStatus(ctx, IngestionStatusMessage{
		RunID: run.ID, TenantID: "tenant-1", Status: types.IngestionStatusRunning,
	})
	if err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
	got, _ := e.runs.GetByID(ctx, nil, run.ID)
	if got.Status != types.IngestionStatusRunning {
		t.Fatalf("expected running, got %q", got.Status)
	}
	if got.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}
	if calls := e.notifier.byMethod("IngestionStatusChanged"); len(calls) != 1 {
		t.Fatalf("expected one status notification, got %v", calls)
	}
}

func TestIngestionReconciler_CompletedSkipsRunningOnFastWorker(t *testing.T) {
	e := newTestEnv(t)
	svc := newIngestionReconciler(e, instantPolicy())
	ctx := context.Background()

	org := e.seedOrg(t, "tenant-1")
	run := e.seedRun(t, org.ID, types.IngestionStatusPending)

	// A fast worker can report completion before running was ever observed.
	err := svc.ApplyStatus(ctx, IngestionStatusMessage{
		RunID: run.ID, TenantID: "tenant-1", Status: types.IngestionStatusCompleted,
		RecordsProcessed: int64ptr(42), RecordsFailed: int64ptr(1),
	})
	if err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
	got, _ := e.runs.GetByID(ctx, nil, run.ID)
	if got.Status != types.IngestionStatusCompleted {
		t.Fatalf("expected completed, got %q", got.Status)
	}
	if got.RecordsProcessed != 42 || got.RecordsFailed != 1 {
		t.Fatalf("counts not applied: %d/%d", got.RecordsProcessed, got.RecordsFailed)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
}

func TestIngestionReconciler_ProgressAppliesEvenWhenTransitionLost(t *testing.T) {
	e := newTestEnv(t)
	svc := newIngestionReconciler(e, instantPolicy())
	ctx := context.Background()

	org := e.seedOrg(t, "tenant-1")
	run := e.seedRun(t, org.ID, types.IngestionStatusCompleted)

	// Redelivered completion: the guarded transition affects nothing, but the
	// counts are still informative and still fan out.
	err := svc.ApplyStatus(ctx, IngestionStatusMessage{
		RunID: run.ID, TenantID: "tenant-1", Status: types.IngestionStatusCompleted,
		RecordsProcessed: int64ptr(100),
	})
	if err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
	got, _ := e.runs.GetByID(ctx, nil, run.ID)
	if got.RecordsProcessed != 100 {
		t.Fatalf("expected counts to update, got %d", got.RecordsProcessed)
	}
	if calls := e.notifier.byMethod("IngestionProgress"); len(calls) != 1 {
		t.Fatalf("expected progress notification, got %v", calls)
	}
	if calls := e.notifier.byMethod("IngestionStatusChanged"); len(calls) != 0 {
		t.Fatalf("lost transition must not re-notify status, got %v", calls)
	}
}

func TestIngestionReconciler_RedeliveredCountsAreQuiet(t *testing.T) {
	e := newTestEnv(t)
	svc := newIngestionReconciler(e, instantPolicy())
	ctx := context.Background()

	org := e.seedOrg(t, "tenant-1")
	run := e.seedRun(t, org.ID, types.IngestionStatusRunning)

	msg := IngestionStatusMessage{
		RunID: run.ID, TenantID: "tenant-1", Status: types.IngestionStatusCompleted,
		RecordsProcessed: int64ptr(100), RecordsFailed: int64ptr(2),
	}
	if err := svc.ApplyStatus(ctx, msg); err != nil {
		t.Fatalf("first ApplyStatus: %v", err)
	}
	if err := svc.ApplyStatus(ctx, msg); err != nil {
		t.Fatalf("second ApplyStatus: %v", err)
	}

	got, _ := e.runs.GetByID(ctx, nil, run.ID)
	if got.RecordsProcessed != 100 || got.RecordsFailed != 2 {
		t.Fatalf("unexpected counts %d/%d", got.RecordsProcessed, got.RecordsFailed)
	}
	// One actual state change, one notification of each kind.
	if calls := e.notifier.byMethod("IngestionProgress"); len(calls) != 1 {
		t.Fatalf("redelivered counts must not re-notify, got %d progress events", len(calls))
	}
	if calls := e.notifier.byMethod("IngestionStatusChanged"); len(calls) != 1 {
		t.Fatalf("expected one status notification, got %d", len(calls))
	}
}

func TestIngestionReconciler_FailureRecordsError(t *testing.T) {
	e := newTestEnv(t)
	svc := newIngestionReconciler(e, instantPolicy())
	ctx := context.Background()

	org := e.seedOrg(t, "tenant-1")
	run := e.seedRun(t, org.ID, types.IngestionStatusRunning)

	err := svc.ApplyStatus(ctx, IngestionStatusMessage{
		RunID: run.ID, TenantID: "tenant-1", Status: types.IngestionStatusFailed, Error: "source unreachable",
	})
	if err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
	got, _ := e.runs.GetByID(ctx, nil, run.ID)
	if got.Status != types.IngestionStatusFailed {
		t.Fatalf("expected failed, got %q", got.Status)
	}
	if got.LastError != "source unreachable" {
		t.Fatalf("expected last_error, got %q", got.LastError)
	}
}

func TestIngestionReconciler_TenantMismatch(t *testing.T) {
	e := newTestEnv(t)
	svc := newIngestionReconciler(e, instantPolicy())

	org := e.seedOrg(t, "tenant-1")
	run := e.seedRun(t, org.ID, types.IngestionStatusPending)

	err := svc.ApplyStatus(context.Background(), IngestionStatusMessage{
		RunID: run.ID, TenantID: "tenant-2", Status: types.IngestionStatusRunning,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestIngestionReconciler_MissingRun(t *testing.T) {
	e := newTestEnv(t)
	svc := newIngestionReconciler(e, singleAttemptPolicy())

	e.seedOrg(t, "tenant-1")
	err := svc.ApplyStatus(context.Background(), IngestionStatusMessage{
		RunID: uuid.New(), TenantID: "tenant-1", Status: types.IngestionStatusRunning,
	})
	if !errors.Is(err, retry.ErrNotYetVisible) {
		t.Fatalf("expected ErrNotYetVisible, got %v", err)
	}
}
