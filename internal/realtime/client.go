package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mediavault/backend/internal/media"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/pkg/response"
	"github.com/mediavault/backend/pkg/utils"
)

const (
	writeWait   = 10 * time.Second
	sendBuffer  = 64
	lookupLimit = 5 * time.Second
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MediaLookup resolves a media asset by id.
type MediaLookup interface {
	GetByID(ctx context.Context, id int64) (*models.MediaAsset, error)
}

// Client is one WebSocket connection watching a media asset. The feed is
// read-only: inbound messages other than control frames are discarded.
type Client struct {
	ID      string
	MediaID int64
	AdminID int64
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	done    chan struct{}
	logger  *zap.Logger
}

// Handler upgrades GET /media/:id/live requests. The route must sit behind the JWT guard.
type Handler struct {
	hub      *Hub
	media    MediaLookup
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates the live feed handler. allowedOrigins is "*" or a
// comma-separated list; requests without an Origin header are always accepted.
func NewHandler(hub *Hub, mediaStore MediaLookup, allowedOrigins string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:   hub,
		media: mediaStore,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger: logger,
	}
}

func checkOrigin(allowed string) func(r *http.Request) bool {
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(origins) == 0 || origins["*"] || origins[origin]
	}
}

// Serve handles the WebSocket upgrade and runs the client loop.
func (h *Handler) Serve(adminID func(*gin.Context) int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		mediaID, ok := utils.ParseID(c.Param("id"))
		if !ok {
			response.Unprocessable(c, "invalid media id")
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), lookupLimit)
		_, err := h.media.GetByID(ctx, mediaID)
		cancel()
		if errors.Is(err, media.ErrNotFound) {
			response.NotFound(c, "media not found")
			return
		}
		if err != nil {
			h.logger.Error("lookup media failed", zap.Int64("media_id", mediaID), zap.Error(err))
			response.Internal(c, "failed to load media")
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:      uuid.NewString(),
			MediaID: mediaID,
			AdminID: adminID(c),
			hub:     h.hub,
			conn:    conn,
			send:    make(chan WSMessage, sendBuffer),
			done:    make(chan struct{}),
			logger:  h.logger,
		}
		// queued before Register so it is always the first message
		hello, _ := json.Marshal(map[string]int64{"media_id": mediaID})
		client.send <- WSMessage{Event: EventSubscribed, Data: hello}
		h.hub.Register(client)

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("live client read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
