// Package hub keeps the registry of connected observers and fans every
// task table snapshot out to them.
package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/me/shopfloor/internal/logging"
	"github.com/me/shopfloor/internal/metrics"
	"github.com/me/shopfloor/pkg/model"
)

// Observer receives state messages. Send must not block; an error means
// the observer is gone and it is removed from the hub.
type Observer interface {
	ID() string
	Send(msg []byte) error
}

// Hub is the connection registry and broadcaster.
type Hub struct {
	logger *slog.Logger

	mu        sync.Mutex
	observers map[string]Observer
	version   uint64
	latest    []byte
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		logger:    logging.Component(logger, "hub"),
		observers: make(map[string]Observer),
	}
}

// emptyState is sent to observers that join before anything was published.
var emptyState, _ = json.Marshal(model.NewStateMessage(nil))

// Add registers an observer and immediately sends it the latest state, or
// an empty table when nothing has been published yet. An observer that
// cannot take the initial state is not registered.
func (h *Hub) Add(o Observer) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	initial := h.latest
	if initial == nil {
		initial = emptyState
	}
	if err := o.Send(initial); err != nil {
		return model.NewTransportError(o.ID(), err)
	}
	h.observers[o.ID()] = o
	metrics.ObserversConnected.Set(float64(len(h.observers)))
	h.logger.Debug("observer added", "observer_id", o.ID(), "observers", len(h.observers))
	return nil
}

// Remove unregisters an observer. It reports whether it was registered.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.observers[id]; !ok {
		return false
	}
	delete(h.observers, id)
	metrics.ObserversConnected.Set(float64(len(h.observers)))
	h.logger.Debug("observer removed", "observer_id", id, "observers", len(h.observers))
	return true
}

// Len returns the number of registered observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Latest returns the last broadcast state message and its version.
func (h *Hub) Latest() (uint64, []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version, h.latest
}

// Publish serializes a snapshot once and delivers it to every observer.
// Snapshots older than the last one delivered are dropped, so observers
// never see the table go back in time.
func (h *Hub) Publish(version uint64, records []model.Record) {
	data, err := json.Marshal(model.NewStateMessage(records))
	if err != nil {
		h.logger.Error("encode state", "version", version, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.setLatestLocked(version, data) {
		return
	}
	metrics.BroadcastsTotal.Inc()

	for id, o := range h.observers {
		if err := o.Send(data); err != nil {
			delete(h.observers, id)
			metrics.ObserversRemovedTotal.Inc()
			terr := model.NewTransportError(id, err)
			h.logger.Warn("observer dropped", "observer_id", id, "code", terr.Code, "error", err)
		}
	}
	metrics.ObserversConnected.Set(float64(len(h.observers)))
}

// Refresh replaces the state sent to new observers without delivering it
// to the registered ones. Stale versions are dropped as in Publish.
func (h *Hub) Refresh(version uint64, records []model.Record) {
	data, err := json.Marshal(model.NewStateMessage(records))
	if err != nil {
		h.logger.Error("encode state", "version", version, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.setLatestLocked(version, data)
}

func (h *Hub) setLatestLocked(version uint64, data []byte) bool {
	if h.latest != nil && version <= h.version {
		h.logger.Debug("stale snapshot dropped", "version", version, "current", h.version)
		return false
	}
	h.version = version
	h.latest = data
	return true
}

// Close unregisters every observer, closing those that can be closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, o := range h.observers {
		if c, ok := o.(io.Closer); ok {
			c.Close()
		}
		delete(h.observers, id)
	}
	metrics.ObserversConnected.Set(0)
}
