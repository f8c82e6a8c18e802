package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/repos"
	"github.com/crestdesk/crestdesk-backend/internal/retry"
	"github.com/crestdesk/crestdesk-backend/internal/types"
)

// testEnv wires real repos over an in-memory sqlite database so reconciler
// tests exercise the actual guarded SQL, not mocks of it.
type testEnv struct {
	db       *gorm.DB
	log      *logger.Logger
	orgs     repos.OrganizationRepo
	users    repos.UserProfileRepo
	members  repos.MembershipRepo
	convs    repos.ConversationRepo
	conns    repos.ConnectionRepo
	runs     repos.IngestionRunRepo
	docs     repos.DocumentRepo
	delegs   repos.DelegationRepo
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Organization{},
		&types.UserProfile{},
		&types.OrganizationMember{},
		&types.Conversation{},
		&types.ActivityContext{},
		&types.DataSourceConnection{},
		&types.IngestionRun{},
		&types.Document{},
		&types.DelegationToken{},
		&types.DelegationAuditLog{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return &testEnv{
		db:       db,
		log:      log,
		orgs:     repos.NewOrganizationRepo(db, log),
		users:    repos.NewUserProfileRepo(db, log),
		members:  repos.NewMembershipRepo(db, log),
		convs:    repos.NewConversationRepo(db, log),
		conns:    repos.NewConnectionRepo(db, log),
		runs:     repos.NewIngestionRunRepo(db, log),
		docs:     repos.NewDocumentRepo(db, log),
		delegs:   repos.NewDelegationRepo(db, log),
		notifier: &fakeNotifier{},
	}
}

// instantPolicy keeps the default five attempts but skips the waits.
func instantPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

// singleAttemptPolicy fails fast for tests that want the not-found path.
func singleAttemptPolicy() retry.Policy {
	return retry.Policy{
		InitialDelay: time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  1,
		Sleep:        func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func (e *testEnv) seedOrg(t *testing.T, externalID string) *types.Organization {
	t.Helper()
	org := &types.Organization{ID: uuid.New(), ExternalID: externalID, Name: externalID}
	if err := e.db.Create(org).Error; err != nil {
		t.Fatalf("seed organization: %v", err)
	}
	return org
}

func (e *testEnv) seedConnection(t *testing.T, orgID uuid.UUID, syncStatus string) *types.DataSourceConnection {
	t.Helper()
	conn := &types.DataSourceConnection{
		ID:                 uuid.New(),
		OrganizationID:     orgID,
		Name:               "Helpdesk",
		SourceType:         "zendesk",
		SyncStatus:         syncStatus,
		VerificationStatus: types.VerificationPending,
	}
	if err := e.db.Create(conn).Error; err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	return conn
}

type notifierCall struct {
	method string
	org    uuid.UUID
	user   uuid.UUID
	status string
	data   map[string]any
}

type fakeNotifier struct {
	calls []notifierCall
}

func (f *fakeNotifier) byMethod(method string) []notifierCall {
	var out []notifierCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeNotifier) SyncStatusChanged(organizationID, connectionID uuid.UUID, status, errorMessage string) {
	f.calls = append(f.calls, notifierCall{method: "SyncStatusChanged", org: organizationID, status: status})
}

func (f *fakeNotifier) VerificationChanged(organizationID, connectionID uuid.UUID, status string) {
	f.calls = append(f.calls, notifierCall{method: "VerificationChanged", org: organizationID, status: status})
}

func (f *fakeNotifier) IngestionStatusChanged(organizationID, runID uuid.UUID, status string) {
	f.calls = append(f.calls, notifierCall{method: "IngestionStatusChanged", org: organizationID, status: status})
}

func (f *fakeNotifier) IngestionProgress(organizationID, runID uuid.UUID, recordsProcessed, recordsFailed int64) {
	f.calls = append(f.calls, notifierCall{method: "IngestionProgress", org: organizationID, data: map[string]any{
		"records_processed": recordsProcessed,
		"records_failed":    recordsFailed,
	}})
}

func (f *fakeNotifier) DocumentStatusChanged(organizationID, documentID uuid.UUID, blobMetadataID, status string) {
	f.calls = append(f.calls, notifierCall{method: "DocumentStatusChanged", org: organizationID, status: status})
}

func (f *fakeNotifier) DelegationStatusChanged(organizationID, delegationID uuid.UUID, status string) {
	f.calls = append(f.calls, notifierCall{method: "DelegationStatusChanged", org: organizationID, status: status})
}

func (f *fakeNotifier) WorkflowCreated(userID uuid.UUID, data map[string]any) {
	f.calls = append(f.calls, notifierCall{method: "WorkflowCreated", user: userID, data: data})
}

func (f *fakeNotifier) WorkflowExecuted(userID, conversationID uuid.UUID, data map[string]any) {
	f.calls = append(f.calls, notifierCall{method: "WorkflowExecuted", user: userID, data: data})
}

func (f *fakeNotifier) WorkflowProgress(userID uuid.UUID, data map[string]any) {
	f.calls = append(f.calls, notifierCall{method: "WorkflowProgress", user: userID, data: data})
}

func (f *fakeNotifier) FeatureFlagUpdated(organizationID uuid.UUID, flag string, enabled bool) {
	f.calls = append(f.calls, notifierCall{method: "FeatureFlagUpdated", org: organizationID, data: map[string]any{
		"flag":    flag,
		"enabled": enabled,
	}})
}
