package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestController(t *testing.T, policy app.Policy) *SignalWSController {
	t.Helper()
	hub := NewHub()
	o := orch.New(policy, hub, nil)
	ctl := NewSignalWSController(o, hub, Options{PingPeriod: time.Second, PongWait: 2 * time.Second})
	ctl.now = func() time.Time { return time.UnixMilli(5000) }
	return ctl
}

// attach registers a send-only connection that is never pumped.
func attach(ctl *SignalWSController, sid domain.ConnID) *WsSignalConn {
	c := newWsSignalConn(nil, 16)
	ctl.Hub.Register(sid, c)
	ctl.Orch.Connect(sid, "token-"+string(sid))
	return c
}

func drain(t *testing.T, c *WsSignalConn) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case b := <-c.send:
			var f frame
			require.NoError(t, json.Unmarshal(b, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func types(frames []frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Type
	}
	return out
}

func TestHandleSignal_JoinAndRelay(t *testing.T) {
	ctl := newTestController(t, app.DefaultPolicy())
	x := attach(ctl, "x")
	y := attach(ctl, "y")

	ctl.handleSignal("x", []byte(`{"type":"join","room":"abc","nick":"X","key":""}`))
	ctl.handleSignal("y", []byte(`{"type":"join","room":"abc","nick":"Y"}`))
	assert.Equal(t, []string{"joined", "peer_joined"}, types(drain(t, x)))

	yFrames := drain(t, y)
	require.Equal(t, []string{"joined"}, types(yFrames))
	var joined domain.Joined
	require.NoError(t, json.Unmarshal(yFrames[0].Data, &joined))
	assert.Equal(t, domain.ConnID("y"), joined.SID)

	ctl.handleSignal("x", []byte(`{"type":"msg","room":"abc","id":"m1","text":"hello"}`))
	yFrames = drain(t, y)
	require.Equal(t, []string{"msg", "unread"}, types(yFrames))
	var msg domain.TextMessage
	require.NoError(t, json.Unmarshal(yFrames[0].Data, &msg))
	assert.Equal(t, domain.TextMessage{ID: "m1", Nick: "X", Text: "hello", TS: msg.TS}, msg)
	assert.Equal(t, []string{"unread"}, types(drain(t, x)))

	ctl.handleSignal("y", []byte(`{"type":"read","room":"abc","id":"m1"}`))
	assert.Equal(t, []string{"unread", "read"}, types(drain(t, x)))

	ctl.handleSignal("y", []byte(`{"type":"typing","room":"abc","state":1}`))
	xFrames := drain(t, x)
	require.Len(t, xFrames, 1)
	assert.JSONEq(t, `{"nick":"Y","state":true}`, string(xFrames[0].Data))
}

func TestHandleSignal_JoinErrors(t *testing.T) {
	ctl := newTestController(t, app.DefaultPolicy())
	x := attach(ctl, "x")

	ctl.handleSignal("x", []byte(`{"type":"join","room":"","nick":"X"}`))
	frames := drain(t, x)
	require.Equal(t, []string{"join_error"}, types(frames))
	assert.JSONEq(t, `{"code":"bad_params","reason":"room and nickname are required"}`, string(frames[0].Data))

	ctl.handleSignal("x", []byte(`{"type":"join","room":["abc"],"nick":"X"}`))
	assert.Equal(t, []string{"join_error"}, types(drain(t, x)))
}

func TestHandleSignal_KeepAlive(t *testing.T) {
	ctl := newTestController(t, app.DefaultPolicy())
	x := attach(ctl, "x")

	ctl.handleSignal("x", []byte(`{"type":"ka"}`))
	frames := drain(t, x)
	require.Equal(t, []string{"ka"}, types(frames))
	assert.JSONEq(t, `{"ts":5000}`, string(frames[0].Data))
}

func TestHandleSignal_IgnoresGarbage(t *testing.T) {
	ctl := newTestController(t, app.DefaultPolicy())
	x := attach(ctl, "x")

	ctl.handleSignal("x", []byte(`not json`))
	ctl.handleSignal("x", []byte(`{"type":"offer","sdp":"v=0"}`))
	ctl.handleSignal("x", []byte(`{"type":"msg","room":"abc","id":"m","text":"hi"}`))
	ctl.handleSignal("x", []byte(`{"type":"read","room":"abc","id":"m"}`))
	assert.Empty(t, drain(t, x))
}

func TestHandleSignal_ThrottleInfo(t *testing.T) {
	policy := app.DefaultPolicy()
	policy.Text.Limit = 1
	ctl := newTestController(t, policy)
	x := attach(ctl, "x")
	y := attach(ctl, "y")
	ctl.handleSignal("x", []byte(`{"type":"join","room":"abc","nick":"X"}`))
	ctl.handleSignal("y", []byte(`{"type":"join","room":"abc","nick":"Y"}`))
	drain(t, x)
	drain(t, y)

	ctl.handleSignal("x", []byte(`{"type":"msg","room":"abc","id":"a","text":"1"}`))
	ctl.handleSignal("x", []byte(`{"type":"msg","room":"abc","id":"b","text":"2"}`))
	assert.Equal(t, []string{"unread", "info"}, types(drain(t, x)))
	assert.Equal(t, []string{"msg", "unread"}, types(drain(t, y)))
}
