package registry

import (
	"log/slog"

	"github.com/1broseidon/multiwin/internal/actionlog"
	"github.com/1broseidon/multiwin/internal/ipc"
	"github.com/1broseidon/multiwin/internal/platform"
)

// Fanout pushes id-list updates to live windows. Delivery is fire-and-forget:
// no acknowledgement, no ordering across receivers, no retry.
type Fanout struct {
	logger  *slog.Logger
	actions *actionlog.Logger
}

// NewFanout creates a Fanout. actions may be nil.
func NewFanout(logger *slog.Logger, actions *actionlog.Logger) *Fanout {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fanout{logger: logger, actions: actions}
}

// Broadcast sends UpdateWindowIds(ids) to every recipient except exclude and
// returns how many sends were issued. platform.NoWindow excludes nobody.
func (f *Fanout) Broadcast(recipients []*Handle, ids []platform.WindowID, exclude platform.WindowID) int {
	sent := 0
	for _, h := range recipients {
		if h.ID == exclude {
			continue
		}
		// Each receiver gets its own slice so nobody can mutate another's view.
		snapshot := append([]platform.WindowID(nil), ids...)
		h.Channel.Send(ipc.EventUpdateWindowIDs, snapshot)
		sent++
	}

	f.logger.Debug("window ids broadcast", "ids", ids, "exclude", exclude, "recipients", sent)
	f.actions.Log(actionlog.ActionBroadcast, uint32(exclude), map[string]interface{}{
		"ids":        ids,
		"recipients": sent,
	})
	return sent
}
