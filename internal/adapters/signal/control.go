package signal

import "github.com/dkeye/Duet/internal/domain"

func (ctl *SignalWSController) handleKeepAlive(sid domain.ConnID) {
	ctl.Hub.Emit(sid, domain.KeepAlive{TS: ctl.now().UnixMilli()})
}
