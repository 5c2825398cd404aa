package views

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/backend/internal/media"
	"github.com/mediavault/backend/internal/models"
)

type fakeLister struct {
	events    []models.ViewEvent
	err       error
	lastLimit int
}

func (f *fakeLister) ListByMedia(_ context.Context, mediaID int64, limit int) ([]models.ViewEvent, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.ViewEvent, 0)
	for _, ev := range f.events {
		if ev.MediaID == mediaID && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeLookup map[int64]*models.MediaAsset

func (f fakeLookup) GetByID(_ context.Context, id int64) (*models.MediaAsset, error) {
	if m, ok := f[id]; ok {
		return m, nil
	}
	return nil, media.ErrNotFound
}

func setupViewsRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/media/:id/views", h.List)
	return r
}

func TestListViews(t *testing.T) {
	now := time.Now().UTC()
	lister := &fakeLister{events: []models.ViewEvent{
		{ID: 2, MediaID: 1, ViewerIP: "10.0.0.2", ViewedAt: now},
		{ID: 1, MediaID: 1, ViewerIP: "10.0.0.1", ViewedAt: now.Add(-time.Minute)},
		{ID: 3, MediaID: 2, ViewerIP: "10.0.0.3", ViewedAt: now},
	}}
	h := NewHandler(lister, fakeLookup{1: {ID: 1}}, time.Second, nil)
	r := setupViewsRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/1/views?limit=1000", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxListLimit, lister.lastLimit)

	var body struct {
		Data struct {
			MediaID int64              `json:"media_id"`
			Views   []models.ViewEvent `json:"views"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Views, 2)
	assert.Equal(t, "10.0.0.2", body.Data.Views[0].ViewerIP)
}

func TestListViewsErrors(t *testing.T) {
	h := NewHandler(&fakeLister{err: errors.New("db down")}, fakeLookup{1: {ID: 1}}, time.Second, nil)
	r := setupViewsRouter(h)

	tests := []struct {
		path string
		want int
	}{
		{"/media/abc/views", http.StatusUnprocessableEntity},
		{"/media/9/views", http.StatusNotFound},
		{"/media/1/views", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.want, w.Code, tt.path)
	}
}
