package harvester

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/common"
	"github.com/ternarybob/colloquy/internal/interfaces"
)

const (
	// PlatformChatGPT is the platform key used in watermark keys and emitted
	// conversations
	PlatformChatGPT = "chatgpt"

	// ComponentName keys the persisted last-sync timestamp
	ComponentName = "chatgpt-harvester"
)

// Service is the ChatGPT harvest worker. One cycle runs credential discovery,
// index fetch, a strictly sequential rate-limited queue drain, linearization,
// and change detection. Errors never escape the probes: every failure path
// clears the sync gate and surfaces only as the probe's boolean verdict.
type Service struct {
	config   *common.HarvesterConfig
	client   *APIClient
	gate     *SyncGate
	detector *ChangeDetector
	events   interfaces.EventService
	logger   arbor.ILogger
}

// NewService creates the harvest worker
func NewService(
	config *common.HarvesterConfig,
	client *APIClient,
	gate *SyncGate,
	detector *ChangeDetector,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:   config,
		client:   client,
		gate:     gate,
		detector: detector,
		events:   eventService,
		logger:   logger,
	}
}

// PlatformName implements interfaces.Harvester
func (s *Service) PlatformName() string {
	return PlatformChatGPT
}

// FetchTargets implements interfaces.Harvester
func (s *Service) FetchTargets() []string {
	return []string{
		s.config.BaseURL + "/",
		s.client.IndexURL(),
		s.client.ConversationURL("{id}"),
	}
}

// ProbeLoginPresence reports whether a bearer credential can currently be
// scraped from the platform's home page
func (s *Service) ProbeLoginPresence(ctx context.Context) bool {
	html, err := s.client.FetchHomePage(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Login presence probe: home page fetch failed")
		return false
	}

	if !HasActiveSession(html) {
		return false
	}

	_, ok := ExtractAccessToken(html)
	return ok
}

// ProbeNeedsSync runs at most one harvest cycle. Returns true when the host
// should call again soon (busy, too-soon, missing credential, or a failed
// drain that should fall back to alternate retrieval); false only on a clean
// full completion.
func (s *Service) ProbeNeedsSync(ctx context.Context) bool {
	if s.gate.ShouldSkip(ctx) {
		return true
	}
	defer s.gate.Release()

	cycleID := uuid.NewString()[:8]
	started := time.Now()

	s.logger.Info().
		Str("cycle_id", cycleID).
		Str("platform", PlatformChatGPT).
		Msg("Harvest cycle started")

	emitted, err := s.runCycle(ctx, cycleID)
	if err != nil {
		s.logger.Warn().
			Str("cycle_id", cycleID).
			Err(err).
			Dur("duration", time.Since(started)).
			Msg("Harvest cycle aborted, falling back to alternate retrieval")
		return true
	}

	s.logger.Info().
		Str("cycle_id", cycleID).
		Int("emitted", emitted).
		Dur("duration", time.Since(started)).
		Msg("Harvest cycle completed")

	if err := s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventSyncCompleted,
		Payload: map[string]interface{}{
			"cycle_id": cycleID,
			"platform": PlatformChatGPT,
			"emitted":  emitted,
		},
	}); err != nil {
		s.logger.Warn().Err(err).Str("cycle_id", cycleID).Msg("Event publish reported failure")
	}

	return false
}

// runCycle executes one credential-to-drain cycle and returns the number of
// conversations emitted. Any error aborts the remaining queue immediately;
// emissions that already happened are not rolled back.
func (s *Service) runCycle(ctx context.Context, cycleID string) (int, error) {
	html, err := s.client.FetchHomePage(ctx)
	if err != nil {
		return 0, err
	}

	token, ok := ExtractAccessToken(html)
	if !ok {
		return 0, ErrCredentialNotFound
	}

	index, err := s.client.FetchIndex(ctx, token)
	if err != nil {
		return 0, err
	}

	queue := NewCrawlQueue()
	for _, item := range index.Items {
		if item.ID == "" {
			continue
		}
		target := Target{
			ConversationID: item.ID,
			URL:            s.client.ConversationURL(item.ID),
		}
		if !queue.Push(target) {
			s.logger.Debug().
				Str("cycle_id", cycleID).
				Str("conversation_id", item.ID).
				Msg("Duplicate index entry skipped")
		}
	}

	s.logger.Debug().
		Str("cycle_id", cycleID).
		Int("queued", queue.Len()).
		Msg("Crawl queue built")

	emitted := 0
	for {
		target, ok := queue.Pop()
		if !ok {
			break
		}

		// Deliberate pause before every fetch, the first included; the
		// platform's abuse detection punishes burst traffic
		if err := s.pause(ctx); err != nil {
			return emitted, err
		}

		doc, err := s.client.FetchConversation(ctx, token, target)
		if err != nil {
			return emitted, fmt.Errorf("queue drain aborted at %s: %w", target.ConversationID, err)
		}

		conv, err := Linearize(doc, PlatformChatGPT)
		if err != nil {
			return emitted, fmt.Errorf("queue drain aborted at %s: %w", target.ConversationID, err)
		}

		didEmit, err := s.detector.Emit(ctx, conv)
		if didEmit {
			emitted++
		}
		if err != nil {
			return emitted, fmt.Errorf("queue drain aborted at %s: %w", target.ConversationID, err)
		}
	}

	return emitted, nil
}

// pause waits the configured inter-request delay with context support
func (s *Service) pause(ctx context.Context) error {
	if s.config.RequestDelay <= 0 {
		return nil
	}

	timer := time.NewTimer(s.config.RequestDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ensure interface compliance
var _ interfaces.Harvester = (*Service)(nil)
