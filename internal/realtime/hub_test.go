package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/internal/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := ChatChannel(uuid.New())

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventReplyDelta, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventReplyFinal, Data: map[string]any{"seq": 2}})

	gotFirst := recvMessage(t, clientA.Outbound, time.Second)
	gotSecond := recvMessage(t, clientA.Outbound, time.Second)
	if gotFirst.Event != SSEEventReplyDelta {
		t.Fatalf("first event: want=%s got=%s", SSEEventReplyDelta, gotFirst.Event)
	}
	if gotSecond.Event != SSEEventReplyFinal {
		t.Fatalf("second event: want=%s got=%s", SSEEventReplyFinal, gotSecond.Event)
	}

	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventArtifactReady, Data: map[string]any{"seq": 3}})
	gotReconnect := recvMessage(t, clientB.Outbound, time.Second)
	if gotReconnect.Event != SSEEventArtifactReady {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventArtifactReady, gotReconnect.Event)
	}
}

func TestSSEHubIgnoresUnknownChannels(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, ChatChannel(uuid.New()))

	hub.Broadcast(SSEMessage{Channel: ChatChannel(uuid.New()), Event: SSEEventReplyDelta})

	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
