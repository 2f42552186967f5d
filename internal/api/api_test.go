package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"emotional-cup-backend/internal/model"
	"emotional-cup-backend/internal/mw"
	"emotional-cup-backend/internal/remotesync"
	"emotional-cup-backend/internal/room"
	"emotional-cup-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router  *gin.Engine
	handler *Handler
	rooms   *room.Store
	db      *gorm.DB
	cache   *mw.ResponseCache
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, gormDB.AutoMigrate(&model.Document{}, &model.PushSubscription{}, &model.SubscriptionVessel{}))
	return gormDB
}

func newTestEnv(t *testing.T, remote remotesync.RemoteStore) *testEnv {
	t.Helper()
	gormDB := newTestDB(t)
	local := store.NewGormStore(gormDB)
	adapter := remotesync.NewAdapter(remote, "room1", time.Hour, time.Second)
	rooms := room.NewStore(room.Bootstrap("2024-01-01"), local, adapter,
		room.WithClock(func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }),
		room.WithLocation(time.UTC))

	h := NewHandler(rooms, adapter, local, &webpush.Options{VAPIDPublicKey: "pub"}, "http://localhost:8080/#room=room1")
	responseCache := mw.NewResponseCache(time.Minute)
	r := NewRouter(h, RouterConfig{RateLimit: 1000, Burst: 1000, Cache: responseCache})
	return &testEnv{router: r, handler: h, rooms: rooms, db: gormDB, cache: responseCache}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) firstVessel() string {
	return e.rooms.Snapshot().Order[0]
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
