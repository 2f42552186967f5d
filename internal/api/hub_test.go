package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emotional-cup-backend/internal/room"
)

func dialHub(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) StateMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg StateMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubStreamsState(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialHub(t, env)

	initial := readState(t, conn)
	assert.Equal(t, "state", initial.Type)
	assert.True(t, env.rooms.Snapshot().Equal(initial.State))

	require.Eventually(t, func() bool { return env.handler.Hub().Len() == 1 }, time.Second, 10*time.Millisecond)

	id := env.firstVessel()
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/vessels/"+id+"/events", map[string]any{"drops": 5}).Code)

	update := readState(t, conn)
	assert.Equal(t, room.OriginLocal, update.Origin)
	assert.Equal(t, 20, update.State.Vessels[id].Level)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialHub(t, env)
	readState(t, conn)
	require.Eventually(t, func() bool { return env.handler.Hub().Len() == 1 }, time.Second, 10*time.Millisecond)

	env.handler.Hub().Close()

	assert.Equal(t, 0, env.handler.Hub().Len())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubRegistersBeforeSnapshot(t *testing.T) {
	hub := NewHub()
	var registered atomic.Int32
	snapshot := func() room.State {
		registered.Store(int32(len(hub.clients)))
		return room.Bootstrap("2024-01-01")
	}

	r := gin.New()
	r.GET("/ws", hub.ServeWS(snapshot))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readState(t, conn)
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, int32(1), registered.Load(), "client was not registered when the snapshot was taken")
}
