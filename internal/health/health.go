// Package health implements the /health endpoint: it reports healthy once the poller has
// published its first snapshot, and includes the state of all supervised switches.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/clambin/climate-guard/internal/guard"
	"github.com/clambin/climate-guard/internal/poller"
)

// StatusReporter provides a Snapshot of every supervised switch. Implemented by guard.Manager.
type StatusReporter interface {
	Snapshots() []guard.Snapshot
}

type Health struct {
	poller.Poller
	Guards  StatusReporter
	logger  *slog.Logger
	update  poller.Update
	updated bool
	lock    sync.RWMutex
}

func New(p poller.Poller, guards StatusReporter, logger *slog.Logger) *Health {
	return &Health{
		Poller: p,
		Guards: guards,
		logger: logger,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.Poller.Subscribe()
	defer h.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.lock.Lock()
			h.update = update
			h.updated = true
			h.lock.Unlock()
		}
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if !h.updated {
		http.Error(w, "no update yet", http.StatusServiceUnavailable)
		h.Poller.Refresh()
		return
	}

	w.Header().Set("Content-Type", "application/json")

	response := struct {
		Entities poller.Update    `json:"entities"`
		Devices  []guard.Snapshot `json:"devices"`
	}{
		Entities: h.update,
		Devices:  h.Guards.Snapshots(),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
