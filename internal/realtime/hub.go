// Package realtime pushes view events to dashboards watching a media asset.
// Events are fanned out through Redis pub/sub so every instance delivers them
// to its own WebSocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mediavault/backend/internal/metrics"
	"github.com/mediavault/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second

	// EventView is sent for every recorded view.
	EventView = "view"
	// EventSubscribed is the first message on a new connection.
	EventSubscribed = "subscribed"

	publishTimeout = 500 * time.Millisecond
)

// Publisher publishes media events to other instances.
type Publisher interface {
	PublishMediaEvent(ctx context.Context, mediaID int64, event string, payload []byte) error
}

// Subscriber subscribes to a media channel and invokes handler for incoming events.
type Subscriber interface {
	SubscribeMedia(mediaID int64, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains media_id -> set of connections and broadcasts messages.
type Hub struct {
	media  map[int64]map[string]*Client
	subs   map[int64]func() // cancel Redis subscription per media id
	mu     sync.RWMutex
	pub    Publisher
	sub    Subscriber
	logger *zap.Logger
}

// NewHub creates a hub. pub and sub may be nil for a single-instance deployment.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		media:  make(map[int64]map[string]*Client),
		subs:   make(map[int64]func()),
		pub:    pub,
		sub:    sub,
		logger: logger,
	}
}

// Register adds a client to a media room. The first client of a room starts its Redis subscription.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.media[c.MediaID] == nil {
		h.media[c.MediaID] = make(map[string]*Client)
		if h.sub != nil {
			mediaID := c.MediaID
			cancel, err := h.sub.SubscribeMedia(mediaID, func(event string, payload []byte) {
				h.Broadcast(mediaID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("subscribe media channel failed", zap.Int64("media_id", mediaID), zap.Error(err))
			} else {
				h.subs[mediaID] = cancel
			}
		}
	}
	h.media[c.MediaID][c.ID] = c
	h.mu.Unlock()
	metrics.LiveSubscribers.Inc()
	h.logger.Debug("live client connected", zap.String("client_id", c.ID), zap.Int64("media_id", c.MediaID))
}

// Unregister removes a client. The last client of a room cancels its Redis subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.media[c.MediaID]
	if ok {
		if _, member := m[c.ID]; !member {
			ok = false
		}
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.media, c.MediaID)
			if cancel, found := h.subs[c.MediaID]; found {
				cancel()
				delete(h.subs, c.MediaID)
			}
		}
	}
	h.mu.Unlock()
	if ok {
		metrics.LiveSubscribers.Dec()
	}
	h.logger.Debug("live client disconnected", zap.String("client_id", c.ID), zap.Int64("media_id", c.MediaID))
}

// Broadcast sends a message to all local clients watching mediaID. Clients
// with a full buffer miss the message.
func (h *Hub) Broadcast(mediaID int64, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.media[mediaID] {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// PublishView fans a recorded view out to every instance. When this instance
// is subscribed the Redis message delivers it locally too; otherwise it is
// broadcast locally directly.
func (h *Hub) PublishView(ctx context.Context, ev models.ViewEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if h.pub != nil {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := h.pub.PublishMediaEvent(pctx, ev.MediaID, EventView, data)
		cancel()
		if err != nil {
			h.logger.Warn("publish view event failed", zap.Int64("media_id", ev.MediaID), zap.Error(err))
		} else {
			h.mu.RLock()
			_, subscribed := h.subs[ev.MediaID]
			h.mu.RUnlock()
			if subscribed {
				return
			}
		}
	}
	h.Broadcast(ev.MediaID, EventView, json.RawMessage(data))
}

// SubscriberCount returns the number of local clients watching mediaID.
func (h *Hub) SubscriberCount(mediaID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.media[mediaID])
}

// Close cancels all Redis subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cancel := range h.subs {
		cancel()
		delete(h.subs, id)
	}
}
