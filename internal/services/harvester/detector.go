package harvester

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
	"github.com/ternarybob/colloquy/internal/services/state"
)

// ChangeDetector suppresses re-emission of conversations that have not
// changed since their last successful publication. It is the sole gate
// against publishing the whole history every cycle, applied per conversation.
type ChangeDetector struct {
	state       *state.Service
	events      interfaces.EventService
	transcriber *Transcriber
	logger      arbor.ILogger
}

// NewChangeDetector creates a change detector
func NewChangeDetector(stateService *state.Service, eventService interfaces.EventService, logger arbor.ILogger) *ChangeDetector {
	return &ChangeDetector{
		state:       stateService,
		events:      eventService,
		transcriber: NewTranscriber(),
		logger:      logger,
	}
}

// Emit publishes the conversation when its latest turn timestamp is newer
// than the persisted watermark, then advances the watermark. Returns true
// when an event was published. Conversations with no turns are suppressed.
//
// Re-emission after a crash between publish and watermark write is harmless:
// downstream consumption is idempotent by conversation id.
func (d *ChangeDetector) Emit(ctx context.Context, conv *models.Conversation) (bool, error) {
	if conv == nil || len(conv.Turns) == 0 {
		return false, nil
	}

	latest := conv.Ended

	watermark, err := d.state.GetWatermark(ctx, conv.Platform, conv.ID)
	if err != nil {
		return false, err
	}

	if !watermark.Before(latest) {
		d.logger.Debug().
			Str("conversation_id", conv.ID).
			Str("watermark", watermark.Format(time.RFC3339)).
			Str("latest", latest.Format(time.RFC3339)).
			Msg("Conversation unchanged, suppressing emission")
		return false, nil
	}

	payload := &models.ConversationEvent{
		EventID:      uuid.NewString(),
		Name:         string(interfaces.EventConversationCaptured),
		Date:         conv.Started,
		Conversation: conv,
		Transcript:   d.transcriber.Render(conv),
	}

	event := interfaces.Event{
		Type:    interfaces.EventConversationCaptured,
		Payload: payload,
	}

	// Fire-and-forget per the bus contract; publish errors only mean there
	// were no healthy subscribers and never roll back the emission
	if err := d.events.Publish(ctx, event); err != nil {
		d.logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("Event publish reported failure")
	}

	if err := d.state.SetWatermark(ctx, conv.Platform, conv.ID, latest); err != nil {
		return true, err
	}

	d.logger.Info().
		Str("conversation_id", conv.ID).
		Int("turns", len(conv.Turns)).
		Str("latest", latest.Format(time.RFC3339)).
		Msg("Conversation emitted")

	return true, nil
}
