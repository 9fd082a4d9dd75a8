package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/config"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ClientTokenKey is the gin context key holding the HTTP client token.
const ClientTokenKey = "client_token"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	ReconnectGrace time.Duration
	SendBuffer     int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		ReconnectGrace: cfg.Room.ReconnectGrace,
		SendBuffer:     64,
	}
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	Hub  *Hub
	opts Options
	now  func() time.Time
}

func NewSignalWSController(o *orch.Orchestrator, hub *Hub, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 10 * time.Second
	}
	if opts.PongWait <= opts.PingPeriod {
		opts.PongWait = 18 * opts.PingPeriod
	}
	return &SignalWSController{
		Orch: o,
		Hub:  hub,
		opts: opts,
		now:  time.Now,
	}
}

type WsSignalConn struct {
	conn WSConn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(conn WSConn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

// TrySend queues a frame without blocking.
func (c *WsSignalConn) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until either side
// goes away or ctx is cancelled.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString(ClientTokenKey)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ctl.Serve(ctx, ws, token)
}

// Serve attaches an established connection under a fresh identity.
func (ctl *SignalWSController) Serve(ctx context.Context, ws WSConn, clientToken string) domain.ConnID {
	sid := domain.ConnID(uuid.NewString())
	ws.SetReadLimit(ctl.opts.ReadLimit)
	_ = ws.SetReadDeadline(ctl.now().Add(ctl.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(ctl.now().Add(ctl.opts.PongWait))
	})

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	ctl.Hub.Register(sid, conn)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Int("connections", ctl.Hub.Len()).Msg("new WS connection")
	ctl.Orch.Connect(sid, clientToken)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, sid, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
	return sid
}

// release runs once the transport for sid is gone.
func (ctl *SignalWSController) release(sid domain.ConnID) {
	grace := ctl.opts.ReconnectGrace
	if grace > 0 && ctl.Orch.Suspend(sid) {
		time.AfterFunc(grace, func() { ctl.Orch.Disconnect(sid) })
		return
	}
	ctl.Orch.Disconnect(sid)
}
