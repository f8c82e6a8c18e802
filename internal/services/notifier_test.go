package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/realtime"
)

type recordingEmitter struct {
	messages []realtime.Message
}

func (r *recordingEmitter) Emit(ctx context.Context, msg realtime.Message) {
	r.messages = append(r.messages, msg)
}

func TestNotifier_OrgEventsTargetOrgChannel(t *testing.T) {
	emit := &recordingEmitter{}
	n := NewNotifier(emit)
	orgID := uuid.New()
	connID := uuid.New()

	n.SyncStatusChanged(orgID, connID, SyncStatusCompleted, "")

	if len(emit.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(emit.messages))
	}
	msg := emit.messages[0]
	if msg.Channel != realtime.OrgChannel(orgID) {
		t.Fatalf("unexpected channel %q", msg.Channel)
	}
	if msg.Type != realtime.EventSyncStatus {
		t.Fatalf("unexpected type %q", msg.Type)
	}
	if msg.Data["connection_id"] != connID.String() {
		t.Fatalf("unexpected data %v", msg.Data)
	}
	if _, ok := msg.Data["timestamp"]; !ok {
		t.Fatal("expected a timestamp on every event")
	}
	if _, ok := msg.Data["error"]; ok {
		t.Fatal("empty error must be omitted")
	}
}

func TestNotifier_UserEventsTargetUserChannel(t *testing.T) {
	emit := &recordingEmitter{}
	n := NewNotifier(emit)
	userID := uuid.New()
	convID := uuid.New()

	n.WorkflowExecuted(userID, convID, map[string]any{"workflow_id": "wf-1"})

	if len(emit.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(emit.messages))
	}
	msg := emit.messages[0]
	if msg.Channel != realtime.UserChannel(userID) {
		t.Fatalf("unexpected channel %q", msg.Channel)
	}
	if msg.Data["conversation_id"] != convID.String() {
		t.Fatalf("conversation id missing: %v", msg.Data)
	}
}

func TestNotifier_NilTargetsAreDropped(t *testing.T) {
	emit := &recordingEmitter{}
	n := NewNotifier(emit)

	n.SyncStatusChanged(uuid.Nil, uuid.New(), SyncStatusStarted, "")
	n.WorkflowProgress(uuid.Nil, nil)

	if len(emit.messages) != 0 {
		t.Fatalf("nil targets must emit nothing, got %v", emit.messages)
	}
}
