package media

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mediavault/backend/internal/metrics"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/internal/signedurl"
	"github.com/mediavault/backend/pkg/response"
	"github.com/mediavault/backend/pkg/storage"
	"github.com/mediavault/backend/pkg/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	// multipart framing and the title field on top of the file itself
	formOverheadBytes = 1 << 20
	// views_logged source label for stream-triggered views
	sourceStream = "stream"
)

// ViewRecorder records stream views and drops cached analytics.
type ViewRecorder interface {
	LogView(ctx context.Context, mediaID int64, viewerIP, source string) (*models.ViewEvent, error)
	Invalidate(ctx context.Context, mediaID int64)
}

// Options configures the media handler.
type Options struct {
	MaxUploadBytes int64
	StoreTimeout   time.Duration
}

// Handler handles media upload, management and streaming.
type Handler struct {
	store   Store
	blob    storage.Blob
	signer  *signedurl.Signer
	views   ViewRecorder
	maxSize int64
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler creates a media handler.
func NewHandler(store Store, blob storage.Blob, signer *signedurl.Signer, views ViewRecorder, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Handler{
		store:   store,
		blob:    blob,
		signer:  signer,
		views:   views,
		maxSize: opts.MaxUploadBytes,
		timeout: opts.StoreTimeout,
		logger:  logger,
	}
}

// Upload handles POST /media/ (multipart: title, type, file).
func (h *Handler) Upload(c *gin.Context) {
	if h.maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+formOverheadBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.rejectUpload(c, "", "file too large")
			return
		}
		h.rejectUpload(c, "", "file is required")
		return
	}
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		h.rejectUpload(c, "", "title is required")
		return
	}
	mtype, ok := models.ParseMediaType(strings.ToLower(strings.TrimSpace(c.PostForm("type"))))
	if !ok {
		h.rejectUpload(c, "", "type must be video or audio")
		return
	}
	if h.maxSize > 0 && fh.Size > h.maxSize {
		h.rejectUpload(c, mtype, "file too large")
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer f.Close()

	detected, err := mimetype.DetectReader(f)
	if err != nil {
		h.rejectUpload(c, mtype, "failed to inspect file")
		return
	}
	contentType := playableType(detected)
	if contentType == "" {
		h.rejectUpload(c, mtype, "unsupported media type "+detected.String())
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		response.Internal(c, "failed to read upload")
		return
	}

	ctx := c.Request.Context()
	key := storage.MediaKey(fh.Filename)
	if err := h.blob.Put(ctx, key, contentType, f, fh.Size); err != nil {
		h.logger.Error("store blob failed", zap.String("key", key), zap.Error(err))
		metrics.UploadsTotal.WithLabelValues(string(mtype), "error").Inc()
		response.Internal(c, "failed to store file")
		return
	}

	sctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	asset, err := h.store.Create(sctx, &models.MediaAsset{
		Title:       title,
		Type:        mtype,
		ContentType: contentType,
		SizeBytes:   fh.Size,
		StorageKey:  key,
	})
	if err != nil {
		h.logger.Error("create media failed", zap.String("key", key), zap.Error(err))
		if derr := h.blob.Delete(context.WithoutCancel(ctx), key); derr != nil {
			h.logger.Warn("remove orphaned blob failed", zap.String("key", key), zap.Error(derr))
		}
		metrics.UploadsTotal.WithLabelValues(string(mtype), "error").Inc()
		response.Internal(c, "failed to save media")
		return
	}

	metrics.UploadsTotal.WithLabelValues(string(mtype), "ok").Inc()
	metrics.UploadBytesTotal.Add(float64(asset.SizeBytes))
	h.logger.Info("media uploaded",
		zap.Int64("media_id", asset.ID),
		zap.String("content_type", contentType),
		zap.Int64("size_bytes", asset.SizeBytes),
	)
	response.Created(c, asset)
}

func (h *Handler) rejectUpload(c *gin.Context, mtype models.MediaType, msg string) {
	metrics.UploadsTotal.WithLabelValues(string(mtype), "rejected").Inc()
	response.Unprocessable(c, msg)
}

// playableType returns the detected MIME type when it, or one of its parents,
// is audio or video. Otherwise it returns "".
func playableType(m *mimetype.MIME) string {
	for t := m; t != nil; t = t.Parent() {
		if strings.HasPrefix(t.String(), "video/") || strings.HasPrefix(t.String(), "audio/") {
			return m.String()
		}
	}
	return ""
}

// List handles GET /media/ (newest first, limit and offset).
func (h *Handler) List(c *gin.Context) {
	limit := utils.QueryInt(c, "limit", defaultListLimit, maxListLimit)
	if limit == 0 {
		limit = defaultListLimit
	}
	offset := utils.QueryInt(c, "offset", 0, 0)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	list, err := h.store.List(ctx, limit, offset)
	if err != nil {
		h.logger.Error("list media failed", zap.Error(err))
		response.Internal(c, "failed to list media")
		return
	}
	response.OK(c, gin.H{"media": list, "limit": limit, "offset": offset})
}

// Get handles GET /media/:id.
func (h *Handler) Get(c *gin.Context) {
	asset, ok := h.lookup(c)
	if !ok {
		return
	}
	response.OK(c, asset)
}

// Delete handles DELETE /media/:id. View events cascade with the row.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		response.Unprocessable(c, "invalid media id")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	asset, err := h.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "media not found")
		return
	}
	if err != nil {
		h.logger.Error("delete media failed", zap.Int64("media_id", id), zap.Error(err))
		response.Internal(c, "failed to delete media")
		return
	}

	if err := h.blob.Delete(c.Request.Context(), asset.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.Warn("remove blob failed", zap.Int64("media_id", id), zap.String("key", asset.StorageKey), zap.Error(err))
	}
	h.views.Invalidate(c.Request.Context(), id)
	h.logger.Info("media deleted", zap.Int64("media_id", id))
	response.NoContent(c)
}

// StreamURL handles GET /media/:id/stream-url.
func (h *Handler) StreamURL(c *gin.Context) {
	asset, ok := h.lookup(c)
	if !ok {
		return
	}
	link := h.signer.Sign(asset.ID)
	metrics.SignedURLsIssued.Inc()
	response.OK(c, link)
}

// Stream handles GET /media/stream/:id?exp=&sig=. The signed link is the only
// authorization; no session token is read.
func (h *Handler) Stream(c *gin.Context) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		metrics.StreamDenied.Inc()
		response.Forbidden(c, "invalid or expired link")
		return
	}
	if err := h.signer.VerifyQuery(id, c.Query("exp"), c.Query("sig")); err != nil {
		metrics.StreamDenied.Inc()
		response.Forbidden(c, "invalid or expired link")
		return
	}

	ctx := c.Request.Context()
	sctx, cancel := context.WithTimeout(ctx, h.timeout)
	asset, err := h.store.GetByID(sctx, id)
	cancel()
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "media not found")
		return
	}
	if err != nil {
		h.logger.Error("lookup media failed", zap.Int64("media_id", id), zap.Error(err))
		response.Internal(c, "failed to load media")
		return
	}

	obj, err := h.blob.Open(ctx, asset.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		h.logger.Warn("media file missing", zap.Int64("media_id", id), zap.String("key", asset.StorageKey))
		response.NotFound(c, "file not found")
		return
	}
	if err != nil {
		h.logger.Error("open blob failed", zap.Int64("media_id", id), zap.Error(err))
		response.Internal(c, "failed to open media")
		return
	}
	defer obj.Body.Close()

	if startsPlayback(c.GetHeader("Range")) {
		if _, err := h.views.LogView(ctx, id, c.ClientIP(), sourceStream); err != nil {
			h.logger.Error("log stream view failed", zap.Int64("media_id", id), zap.Error(err))
			response.Internal(c, "failed to log view")
			return
		}
	}

	name := asset.Title + path.Ext(asset.StorageKey)
	c.Header("Content-Type", asset.ContentType)
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	if rs, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, name, obj.ModTime, rs)
		return
	}
	c.Header("Accept-Ranges", "none")
	c.DataFromReader(http.StatusOK, obj.Size, asset.ContentType, obj.Body, nil)
}

// startsPlayback reports whether a request begins a playback: no Range, or a
// range from byte 0. Players issue follow-up ranges while seeking or buffering.
func startsPlayback(rangeHeader string) bool {
	r := strings.TrimSpace(rangeHeader)
	return r == "" || strings.HasPrefix(r, "bytes=0-")
}

func (h *Handler) lookup(c *gin.Context) (*models.MediaAsset, bool) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		response.Unprocessable(c, "invalid media id")
		return nil, false
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	asset, err := h.store.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "media not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("lookup media failed", zap.Int64("media_id", id), zap.Error(err))
		response.Internal(c, "failed to load media")
		return nil, false
	}
	return asset, true
}
