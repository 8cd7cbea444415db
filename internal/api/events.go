package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/hwcodec/internal/events"
)

// registerEventRoutes registers the codec event SSE stream.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time encoder, decoder, tuning and probe events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":            events.ConnectedEvent{},
		"encoder-created":      events.EncoderCreatedEvent{},
		"encoder-reconfigured": events.EncoderReconfiguredEvent{},
		"encoder-closed":       events.EncoderClosedEvent{},
		"decoder-created":      events.DecoderCreatedEvent{},
		"decoder-closed":       events.DecoderClosedEvent{},
		"tuning-failed":        events.TuningFailedEvent{},
		"probe-completed":      events.ProbeCompletedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if s.eventBus == nil {
			return
		}
		eventCh := make(chan any, 16)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.EncoderCreatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.EncoderReconfiguredEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.EncoderClosedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DecoderCreatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DecoderClosedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TuningFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ProbeCompletedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(events.ConnectedEvent{
			Message:   "event stream connected",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
