package signal

import (
	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleText(sid domain.ConnID, data []byte) {
	var req orch.TextRequest
	if !decode(sid, data, &req) {
		return
	}
	if err := ctl.Orch.SendText(sid, req); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("msg not relayed")
	}
}

func (ctl *SignalWSController) handleFile(sid domain.ConnID, data []byte) {
	var req orch.FileRequest
	if !decode(sid, data, &req) {
		return
	}
	if err := ctl.Orch.SendAttachment(sid, req); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("file not relayed")
	}
}

func (ctl *SignalWSController) handleRead(sid domain.ConnID, data []byte) {
	var req orch.ReadRequest
	if decode(sid, data, &req) {
		ctl.Orch.Read(sid, req)
	}
}

func (ctl *SignalWSController) handleTyping(sid domain.ConnID, data []byte) {
	var req orch.TypingRequest
	if decode(sid, data, &req) {
		ctl.Orch.Typing(sid, req)
	}
}
