package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
)

// Event names are the wire-level `type` field pushed to live subscribers.
type Event string

const (
	EventSyncStatus           Event = "sync_status"
	EventVerificationStatus   Event = "verification_status"
	EventIngestionStatus      Event = "ingestion_status"
	EventIngestionProgress    Event = "ingestion_progress"
	EventDocumentStatus       Event = "document_status"
	EventDelegationStatus     Event = "delegation_status"
	EventWorkflowCreated      Event = "workflow_created"
	EventWorkflowExecuted     Event = "workflow_executed"
	EventWorkflowProgress     Event = "progress_update"
	EventFeatureFlagUpdate    Event = "feature_flag_update"
)

type Message struct {
	Channel string         `json:"channel"`
	Type    Event          `json:"type"`
	Data    map[string]any `json:"data,omitempty"`
}

func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

func OrgChannel(organizationID uuid.UUID) string {
	return "org:" + organizationID.String()
}

type Client struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
}

// Hub is the in-process subscriber registry: channel name to the set of live
// clients. Entries are connection-bound; disconnect removes them immediately.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "RealtimeHub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) NewClient() *Client {
	return &Client{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan Message, 16),
		done:     make(chan struct{}),
	}
}

func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	client.Channels[channel] = true

	clients, exists := h.subscriptions[channel]
	if !exists {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[client] = true

	h.log.Debug("Client subscribed", "clientID", client.ID, "channel", channel)
}

func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range client.Channels {
		if subMap, ok := h.subscriptions[ch]; ok {
			delete(subMap, client)
			if len(subMap) == 0 {
				delete(h.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
	h.log.Debug("Client unsubscribed from all channels", "clientID", client.ID)
}

// Broadcast delivers to every live subscriber of the message's channel.
// No subscribers is a silent no-op; a full outbound buffer drops the message
// for that client rather than blocking the caller.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.Channel == "" {
		return
	}
	clients, ok := h.subscriptions[msg.Channel]
	if !ok {
		return
	}
	for c := range clients {
		select {
		case c.Outbound <- msg:
		default:
			h.log.Warn("Dropping realtime message; outbound buffer full", "clientID", c.ID, "channel", msg.Channel)
		}
	}
}

func (h *Hub) SendToUser(userID uuid.UUID, event Event, data map[string]any) {
	if userID == uuid.Nil {
		return
	}
	h.Broadcast(Message{Channel: UserChannel(userID), Type: event, Data: data})
}

func (h *Hub) SendToOrganization(organizationID uuid.UUID, event Event, data map[string]any) {
	if organizationID == uuid.Nil {
		return
	}
	h.Broadcast(Message{Channel: OrgChannel(organizationID), Type: event, Data: data})
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("Client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			jsonBytes, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("Failed to marshal realtime message", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", string(jsonBytes))
			flusher.Flush()
		}
	}
}

func (h *Hub) CloseClient(client *Client) {
	close(client.done)
	h.RemoveClient(client)
	close(client.Outbound)
}
