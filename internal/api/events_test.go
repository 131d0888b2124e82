package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodeforge/flowengine/internal/emit"
)

func TestEventHubPublishDeliversToSubscriber(t *testing.T) {
	t.Parallel()
	h := newEventHub()
	ch := h.subscribe("run-1")
	defer h.unsubscribe("run-1", ch)

	h.publish("run-1", emit.Event{ExecutionID: "run-1", Msg: "node_completed"})

	select {
	case ev := <-ch:
		require.Equal(t, "node_completed", ev.Msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventHubPublishIgnoresUnrelatedExecution(t *testing.T) {
	t.Parallel()
	h := newEventHub()
	ch := h.subscribe("run-1")
	defer h.unsubscribe("run-1", ch)

	h.publish("run-2", emit.Event{ExecutionID: "run-2", Msg: "node_completed"})

	select {
	case <-ch:
		t.Fatal("unexpected event delivered to unrelated subscriber")
	case <-time.After(50 * time.Millisecond):
	}
}
