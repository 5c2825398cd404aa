package analytics

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mediavault/backend/pkg/response"
	"github.com/mediavault/backend/pkg/utils"
)

// ViewResponse is the body returned after a manual view log.
type ViewResponse struct {
	Message   string    `json:"message"`
	MediaID   int64     `json:"media_id"`
	ViewerIP  string    `json:"viewer_ip"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler handles view logging and analytics endpoints.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, logger: logger}
}

// LogView handles POST /media/:id/view. Rate limited by route middleware.
func (h *Handler) LogView(c *gin.Context) {
	mediaID, ok := utils.ParseID(c.Param("id"))
	if !ok {
		response.Unprocessable(c, "invalid media id")
		return
	}
	ev, err := h.engine.LogView(c.Request.Context(), mediaID, c.ClientIP(), SourceManual)
	if errors.Is(err, ErrMediaNotFound) {
		response.NotFound(c, "media not found")
		return
	}
	if err != nil {
		h.logger.Error("log view failed", zap.Int64("media_id", mediaID), zap.Error(err))
		response.Internal(c, "failed to log view")
		return
	}
	response.OK(c, ViewResponse{
		Message:   "View logged successfully",
		MediaID:   ev.MediaID,
		ViewerIP:  ev.ViewerIP,
		Timestamp: ev.ViewedAt,
	})
}

// Get handles GET /media/:id/analytics. X-Cache reports HIT or MISS.
func (h *Handler) Get(c *gin.Context) {
	mediaID, ok := utils.ParseID(c.Param("id"))
	if !ok {
		response.Unprocessable(c, "invalid media id")
		return
	}
	snap, cached, err := h.engine.Analytics(c.Request.Context(), mediaID)
	if errors.Is(err, ErrMediaNotFound) {
		response.NotFound(c, "media not found")
		return
	}
	if err != nil {
		h.logger.Error("compute analytics failed", zap.Int64("media_id", mediaID), zap.Error(err))
		response.Internal(c, "failed to compute analytics")
		return
	}
	if cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	response.OK(c, snap)
}
