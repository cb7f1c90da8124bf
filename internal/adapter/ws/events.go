package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/port/messagequeue"
)

// BroadcastEvent implements broadcast.Broadcaster: it marshals a typed
// event and delivers it to the clients following the payload's subject.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:      eventType,
		Payload:   json.RawMessage(data),
		SubjectID: subjectOf(payload),
	})
}

func subjectOf(payload any) string {
	switch p := payload.(type) {
	case *agent.Response:
		return p.SubjectID
	case agent.Response:
		return p.SubjectID
	case messagequeue.FragmentFailedPayload:
		return p.SubjectID
	default:
		return ""
	}
}
