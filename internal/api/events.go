package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nodeforge/flowengine/internal/emit"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// eventHub fans run events out to any websocket clients subscribed to
// that run's execution ID.
type eventHub struct {
	mu   sync.Mutex
	subs map[string][]chan emit.Event
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[string][]chan emit.Event)}
}

// emitterFor returns an emit.Emitter that fans a run's events into the
// hub, for wiring into the Engine that executes that run.
func (h *eventHub) emitterFor(executionID string) emit.Emitter {
	return &hubEmitter{hub: h, executionID: executionID}
}

func (h *eventHub) subscribe(executionID string) chan emit.Event {
	ch := make(chan emit.Event, 32)
	h.mu.Lock()
	h.subs[executionID] = append(h.subs[executionID], ch)
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(executionID string, ch chan emit.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[executionID]
	for i, c := range subs {
		if c == ch {
			h.subs[executionID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
}

func (h *eventHub) publish(executionID string, ev emit.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[executionID] {
		select {
		case ch <- ev:
		default: // slow subscriber, drop rather than block the run
		}
	}
}

type hubEmitter struct {
	hub         *eventHub
	executionID string
}

func (e *hubEmitter) Emit(ev emit.Event) {
	e.hub.publish(e.executionID, ev)
}

func (e *hubEmitter) EmitBatch(_ context.Context, events []emit.Event) error {
	for _, ev := range events {
		e.Emit(ev)
	}
	return nil
}

func (e *hubEmitter) Flush(context.Context) error { return nil }

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe(id)
	defer s.hub.unsubscribe(id, ch)

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
