package events

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs conversation events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Info().
			Str("event_type", string(event.Type))

		if payload, ok := event.Payload.(*models.ConversationEvent); ok && payload.Conversation != nil {
			logEvent = logEvent.
				Str("platform", payload.Conversation.Platform).
				Str("conversation_id", payload.Conversation.ID).
				Int("turns", len(payload.Conversation.Turns))
		}

		logEvent.Msg("Event published")
		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventConversationCaptured,
		interfaces.EventSyncCompleted,
	}

	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return err
		}
	}

	return nil
}
