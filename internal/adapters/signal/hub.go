package signal

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Hub routes events from the core to live connections. It implements
// core.Emitter.
type Hub struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*WsSignalConn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[domain.ConnID]*WsSignalConn)}
}

func (h *Hub) Register(sid domain.ConnID, c *WsSignalConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[sid] = c
}

// Unregister drops sid only if it still maps to c.
func (h *Hub) Unregister(sid domain.ConnID, c *WsSignalConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[sid] == c {
		delete(h.conns, sid)
	}
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Emit never blocks: a full send queue drops the frame.
func (h *Hub) Emit(to domain.ConnID, ev domain.Event) {
	h.mu.RLock()
	c, ok := h.conns[to]
	h.mu.RUnlock()
	if !ok {
		return
	}

	frame, err := Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", ev.EventType()).Msg("encode event")
		return
	}
	if err := c.TrySend(frame); err != nil && !errors.Is(err, ErrConnClosed) {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(to)).Str("type", ev.EventType()).Msg("frame dropped")
	}
}

type envelope struct {
	Type string       `json:"type"`
	Data domain.Event `json:"data"`
}

// Encode wraps ev in the outbound {"type","data"} envelope.
func Encode(ev domain.Event) ([]byte, error) {
	return json.Marshal(envelope{Type: ev.EventType(), Data: ev})
}
