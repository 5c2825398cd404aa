package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/backend/internal/media"
	"github.com/mediavault/backend/internal/models"
)

type lookupFunc func(id int64) bool

func (f lookupFunc) GetByID(_ context.Context, id int64) (*models.MediaAsset, error) {
	if !f(id) {
		return nil, media.ErrNotFound
	}
	return &models.MediaAsset{ID: id}, nil
}

func onlyMedia(ids ...int64) lookupFunc {
	return func(id int64) bool {
		for _, known := range ids {
			if known == id {
				return true
			}
		}
		return false
	}
}

func startServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(hub, onlyMedia(1), "*", nil)
	r := gin.New()
	r.GET("/media/:id/live", h.Serve(func(*gin.Context) int64 { return 7 }))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	msg := readMessage(t, conn)
	require.Equal(t, EventSubscribed, msg.Event)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func assertViewMessage(t *testing.T, conn *websocket.Conn, want models.ViewEvent) {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, EventView, msg.Event)
	var got models.ViewEvent
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.MediaID, got.MediaID)
	assert.Equal(t, want.ViewerIP, got.ViewerIP)
}

func assertNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected extra message")
}

func TestLiveFeedLocal(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	srv := startServer(t, hub)
	conn := dial(t, srv, "/media/1/live")
	assert.Equal(t, 1, hub.SubscriberCount(1))

	ev := models.ViewEvent{ID: 10, MediaID: 1, ViewerIP: "10.0.0.1", ViewedAt: time.Now().UTC()}
	hub.PublishView(context.Background(), ev)
	assertViewMessage(t, conn, ev)

	hub.PublishView(context.Background(), models.ViewEvent{ID: 11, MediaID: 2})
	assertNoMessage(t, conn)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.SubscriberCount(1) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLiveFeedRejectsUnknownMedia(t *testing.T) {
	srv := startServer(t, NewHub(nil, nil, nil))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url+"/media/2/live", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"/media/abc/live", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestLiveFeedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newPubSub := func() *RedisPubSub {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return NewRedisPubSub(rdb, nil)
	}
	psA, psB := newPubSub(), newPubSub()
	hubA := NewHub(nil, psA, psA)
	hubB := NewHub(nil, psB, psB)
	t.Cleanup(hubA.Close)
	t.Cleanup(hubB.Close)

	connA := dial(t, startServer(t, hubA), "/media/1/live")
	connB := dial(t, startServer(t, hubB), "/media/1/live")

	ev := models.ViewEvent{ID: 5, MediaID: 1, ViewerIP: "10.0.0.9", ViewedAt: time.Now().UTC()}
	hubA.PublishView(context.Background(), ev)

	assertViewMessage(t, connB, ev)
	assertViewMessage(t, connA, ev)
	assertNoMessage(t, connA)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "views:media:42", Channel(42))
}
