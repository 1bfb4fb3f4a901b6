package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/liveboard/api/internal/model"
	"gorm.io/gorm"
)

// PresenceStore tracks who is in a session. The stored status field is
// what heartbeats and explicit leaves write; List overlays the
// staleness window on top of it, so a participant whose beats stopped
// reads as offline even while the row still says online.
type PresenceStore struct {
	db        *gorm.DB
	staleness time.Duration
}

func NewPresenceStore(db *gorm.DB, staleness time.Duration) *PresenceStore {
	if staleness <= 0 {
		staleness = 45 * time.Second
	}
	return &PresenceStore{db: db, staleness: staleness}
}

// Heartbeat upserts the (session, role, name) participant row as
// online. Heartbeats are never rejected for ended sessions; a stale
// beat is a harmless no-op from the caller's point of view.
func (s *PresenceStore) Heartbeat(sessionID, name, role string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var participant model.Participant
		err := tx.Where("session_id = ? AND role = ? AND name = ?", sessionID, role, name).
			First(&participant).Error
		if err == gorm.ErrRecordNotFound {
			return tx.Create(&model.Participant{
				ID:        uuid.NewString(),
				SessionID: sessionID,
				Role:      role,
				Name:      name,
				Status:    model.StatusOnline,
				UpdatedAt: now,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&model.Participant{}).
			Where("id = ?", participant.ID).
			Updates(map[string]interface{}{"status": model.StatusOnline, "updated_at": now}).Error
	})
}

// List returns the session's participants with the derived status:
// anyone whose last update is older than the staleness window reports
// offline regardless of the stored value.
func (s *PresenceStore) List(sessionID string) ([]model.Participant, error) {
	var participants []model.Participant
	err := s.db.Where("session_id = ?", sessionID).
		Order("updated_at DESC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range participants {
		if now.Sub(participants[i].UpdatedAt) > s.staleness {
			participants[i].Status = model.StatusOffline
		}
	}
	return participants, nil
}

// MarkOffline flips a participant's stored status on intentional
// leave and returns the session the row belongs to. Unknown ids are a
// no-op; the participant may already have been swept away with its
// session.
func (s *PresenceStore) MarkOffline(participantID string) (string, error) {
	var participant model.Participant
	err := s.db.First(&participant, "id = ?", participantID).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	err = s.db.Model(&model.Participant{}).
		Where("id = ?", participantID).
		Updates(map[string]interface{}{"status": model.StatusOffline, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return "", err
	}
	return participant.SessionID, nil
}

// Staleness exposes the configured window for callers that render it.
func (s *PresenceStore) Staleness() time.Duration {
	return s.staleness
}
