package signal

import (
	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(sid domain.ConnID, data []byte) {
	var req orch.JoinRequest
	if !decode(sid, data, &req) {
		req = orch.JoinRequest{}
	}
	if err := ctl.Orch.Join(sid, req); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join failed")
	}
}

func (ctl *SignalWSController) handleRejoin(sid domain.ConnID, data []byte) {
	var req orch.RejoinRequest
	if !decode(sid, data, &req) {
		req = orch.RejoinRequest{}
	}
	if err := ctl.Orch.Rejoin(sid, req); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("rejoin failed")
	}
}
