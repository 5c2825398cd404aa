package views

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mediavault/backend/internal/media"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/pkg/response"
	"github.com/mediavault/backend/pkg/utils"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Lister reads recent view events.
type Lister interface {
	ListByMedia(ctx context.Context, mediaID int64, limit int) ([]models.ViewEvent, error)
}

// MediaLookup resolves a media asset by id.
type MediaLookup interface {
	GetByID(ctx context.Context, id int64) (*models.MediaAsset, error)
}

// Handler handles GET /media/:id/views.
type Handler struct {
	views   Lister
	media   MediaLookup
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler creates a view log handler. timeout bounds each store call.
func NewHandler(views Lister, media MediaLookup, timeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{views: views, media: media, timeout: timeout, logger: logger}
}

// List handles GET /media/:id/views (most recent events, newest first).
func (h *Handler) List(c *gin.Context) {
	mediaID, ok := utils.ParseID(c.Param("id"))
	if !ok {
		response.Unprocessable(c, "invalid media id")
		return
	}
	limit := utils.QueryInt(c, "limit", defaultListLimit, maxListLimit)
	if limit == 0 {
		limit = defaultListLimit
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if _, err := h.media.GetByID(ctx, mediaID); err != nil {
		if errors.Is(err, media.ErrNotFound) {
			response.NotFound(c, "media not found")
			return
		}
		h.logger.Error("lookup media failed", zap.Int64("media_id", mediaID), zap.Error(err))
		response.Internal(c, "failed to list views")
		return
	}
	list, err := h.views.ListByMedia(ctx, mediaID, limit)
	if err != nil {
		h.logger.Error("list views failed", zap.Int64("media_id", mediaID), zap.Error(err))
		response.Internal(c, "failed to list views")
		return
	}
	response.OK(c, gin.H{"media_id": mediaID, "views": list})
}
