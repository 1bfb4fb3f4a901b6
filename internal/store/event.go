package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/liveboard/api/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventStore is the bounded broadcast-channel log: per-channel
// monotonic sequences, retention enforced as a side effect of publish.
type EventStore struct {
	db        *gorm.DB
	retention int
}

func NewEventStore(db *gorm.DB, retention int) *EventStore {
	if retention <= 0 {
		retention = 400
	}
	return &EventStore{db: db, retention: retention}
}

type PublishResult struct {
	EventID  string `json:"eventId"`
	Sequence int64  `json:"sequence"`
}

// Publish appends an event to the channel and prunes everything older
// than the newest retention entries. Sequences are contiguous per
// channel, so the prune is a simple cutoff on sequence.
func (s *EventStore) Publish(channel, name string, payload json.RawMessage) (*PublishResult, error) {
	var result *PublishResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&model.Event{}).
			Where("channel = ?", channel).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}

		event := &model.Event{
			ID:        uuid.NewString(),
			Channel:   channel,
			Name:      name,
			Payload:   datatypes.JSON(payload),
			Sequence:  maxSeq + 1,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		cutoff := event.Sequence - int64(s.retention)
		if cutoff > 0 {
			if err := tx.Where("channel = ? AND sequence <= ?", channel, cutoff).
				Delete(&model.Event{}).Error; err != nil {
				return err
			}
		}

		result = &PublishResult{EventID: event.ID, Sequence: event.Sequence}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stream returns up to the newest retention events of a channel,
// ascending by sequence.
func (s *EventStore) Stream(channel string) ([]model.Event, error) {
	var events []model.Event
	err := s.db.Where("channel = ?", channel).
		Order("sequence ASC").
		Limit(s.retention).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
