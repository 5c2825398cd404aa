package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/backend/internal/models"
)

func setupAnalyticsRouter(e *Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(e, nil)
	r := gin.New()
	r.POST("/media/:id/view", h.LogView)
	r.GET("/media/:id/analytics", h.Get)
	return r
}

func doRequest(r http.Handler, method, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestViewThenAnalyticsScenario(t *testing.T) {
	cache, _ := newMiniredisCache(t)
	e, _ := newTestEngine(cache, 1)
	r := setupAnalyticsRouter(e)

	for _, addr := range []string{"198.51.100.1:5000", "198.51.100.1:5001", "198.51.100.2:6000"} {
		w := doRequest(r, http.MethodPost, "/media/1/view", addr)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body struct {
			Data ViewResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "View logged successfully", body.Data.Message)
		assert.Equal(t, int64(1), body.Data.MediaID)
	}

	w := doRequest(r, http.MethodGet, "/media/1/analytics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var body struct {
		Data models.AnalyticsSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(3), body.Data.TotalViews)
	assert.Equal(t, int64(2), body.Data.UniqueIPs)

	w = doRequest(r, http.MethodGet, "/media/1/analytics", "")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestAnalyticsHandlerErrors(t *testing.T) {
	e, _ := newTestEngine(nil, 1)
	r := setupAnalyticsRouter(e)

	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodPost, "/media/2/view", "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/media/2/analytics", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, doRequest(r, http.MethodPost, "/media/x/view", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, doRequest(r, http.MethodGet, "/media/0/analytics", "").Code)
}
