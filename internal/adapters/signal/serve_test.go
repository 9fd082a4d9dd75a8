package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, grace time.Duration) (*SignalWSController, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	o := orch.New(app.DefaultPolicy(), hub, nil)
	ctl := NewSignalWSController(o, hub, Options{
		ReadLimit:      1 << 20,
		PingPeriod:     time.Second,
		PongWait:       5 * time.Second,
		ReconnectGrace: grace,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set(ClientTokenKey, c.Query("ct"))
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return ctl, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url+"?ct="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func next(t *testing.T, ws *websocket.Conn, want string) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, ws.ReadJSON(&f))
		if f.Type == want {
			return f
		}
	}
}

func joinedSID(t *testing.T, ws *websocket.Conn) domain.ConnID {
	t.Helper()
	var joined domain.Joined
	require.NoError(t, json.Unmarshal(next(t, ws, "joined").Data, &joined))
	return joined.SID
}

func TestServe_EndToEnd(t *testing.T) {
	ctl, url := startServer(t, 0)
	a := dial(t, url, "ta")
	b := dial(t, url, "tb")
	assert.Eventually(t, func() bool { return ctl.Hub.Len() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteJSON(map[string]any{"type": "join", "room": "abc", "nick": "A"}))
	joinedSID(t, a)
	require.NoError(t, b.WriteJSON(map[string]any{"type": "join", "room": "abc", "nick": "B"}))
	joinedSID(t, b)
	next(t, a, "peer_joined")

	require.NoError(t, a.WriteJSON(map[string]any{"type": "msg", "room": "abc", "id": "m1", "text": "hi"}))
	var msg domain.TextMessage
	require.NoError(t, json.Unmarshal(next(t, b, "msg").Data, &msg))
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "A", msg.Nick)

	require.NoError(t, b.Close())
	next(t, a, "peer_left")
	assert.Eventually(t, func() bool { return ctl.Orch.Registry.Count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return ctl.Hub.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServe_ReconnectWithinGraceMigrates(t *testing.T) {
	ctl, url := startServer(t, 300*time.Millisecond)
	a := dial(t, url, "ta")
	b := dial(t, url, "tb")

	require.NoError(t, a.WriteJSON(map[string]any{"type": "join", "room": "abc", "nick": "A"}))
	joinedSID(t, a)
	require.NoError(t, b.WriteJSON(map[string]any{"type": "join", "room": "abc", "nick": "B"}))
	prev := joinedSID(t, b)
	require.NoError(t, a.WriteJSON(map[string]any{"type": "msg", "room": "abc", "id": "m1", "text": "hi"}))
	next(t, b, "msg")

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool {
		s, ok := ctl.Orch.Registry.Get(prev)
		return ok && s.State == domain.StateDisconnected
	}, time.Second, 5*time.Millisecond)

	b2 := dial(t, url, "tb")
	require.NoError(t, b2.WriteJSON(map[string]any{"type": "rejoin", "room": "abc", "nick": "B", "prev": string(prev)}))
	sid := joinedSID(t, b2)
	assert.NotEqual(t, prev, sid)

	room, ok := ctl.Orch.Rooms.Get("abc")
	require.True(t, ok)
	count, pending := room.PendingCount("m1")
	require.True(t, pending)
	assert.Equal(t, 1, count)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 2, room.MemberCount())
	_, ok = ctl.Orch.Registry.Get(prev)
	assert.False(t, ok)
}

func TestServe_GraceExpiryDisconnects(t *testing.T) {
	ctl, url := startServer(t, 50*time.Millisecond)
	a := dial(t, url, "ta")
	b := dial(t, url, "tb")

	require.NoError(t, a.WriteJSON(map[string]any{"type": "join", "room": "abc", "nick": "A"}))
	joinedSID(t, a)
	require.NoError(t, b.WriteJSON(map[string]any{"type": "join", "room": "abc", "nick": "B"}))
	joinedSID(t, b)

	require.NoError(t, b.Close())
	next(t, a, "peer_left")
	status, _ := ctl.Orch.RoomStatus("abc")
	assert.Equal(t, 1, status.MemberCount)
}
