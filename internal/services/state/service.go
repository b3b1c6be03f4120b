package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
)

// Service provides typed access to the harvester's persisted state: the
// per-component last-sync instant and per-conversation watermarks. Instants
// are stored as unix milliseconds in decimal form.
type Service struct {
	storage interfaces.KeyValueStorage
	logger  arbor.ILogger
}

// NewService creates a new state service
func NewService(storage interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// lastSyncKey builds the persisted key for a component's last sync instant
func lastSyncKey(component string) string {
	return component + "-last-sync"
}

// watermarkKey builds the persisted key for a conversation's watermark
func watermarkKey(platform, conversationID string) string {
	return fmt.Sprintf("%s-%s-last-update", platform, conversationID)
}

// GetLastSync returns the persisted last-sync instant for a component, or the
// zero time when never set
func (s *Service) GetLastSync(ctx context.Context, component string) (time.Time, error) {
	return s.getInstant(ctx, lastSyncKey(component))
}

// SetLastSync persists the last-sync instant for a component
func (s *Service) SetLastSync(ctx context.Context, component string, when time.Time) error {
	return s.setInstant(ctx, lastSyncKey(component), when, "harvest cycle start timestamp")
}

// GetWatermark returns the persisted watermark for a conversation, or the
// zero time when the conversation has never been emitted
func (s *Service) GetWatermark(ctx context.Context, platform, conversationID string) (time.Time, error) {
	return s.getInstant(ctx, watermarkKey(platform, conversationID))
}

// SetWatermark persists the watermark for a conversation
func (s *Service) SetWatermark(ctx context.Context, platform, conversationID string, when time.Time) error {
	return s.setInstant(ctx, watermarkKey(platform, conversationID), when, "latest emitted turn timestamp")
}

func (s *Service) getInstant(ctx context.Context, key string) (time.Time, error) {
	value, err := s.storage.Get(ctx, key)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to read persisted instant")
		return time.Time{}, err
	}

	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		s.logger.Warn().Str("key", key).Str("value", value).Msg("Persisted instant is not numeric, treating as unset")
		return time.Time{}, nil
	}

	return time.UnixMilli(millis), nil
}

func (s *Service) setInstant(ctx context.Context, key string, when time.Time, description string) error {
	value := strconv.FormatInt(when.UnixMilli(), 10)
	if err := s.storage.Set(ctx, key, value, description); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to persist instant")
		return err
	}

	s.logger.Debug().Str("key", key).Str("value", value).Msg("Persisted instant")
	return nil
}
