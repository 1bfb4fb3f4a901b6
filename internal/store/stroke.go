package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/syncerr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Scope values returned by Clear.
const (
	ClearScopeAll  = "all"
	ClearScopeSelf = "self"
)

// StrokeStore is the append-only stroke ledger. Sequence numbers are
// allocated by reading the current session maximum immediately before
// insert; there is no counter table.
type StrokeStore struct {
	db *gorm.DB
}

func NewStrokeStore(db *gorm.DB) *StrokeStore {
	return &StrokeStore{db: db}
}

type AppendResult struct {
	StrokeID  string `json:"strokeId"`
	Sequence  int64  `json:"sequence"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Append commits one stroke to the ledger. The session must be active
// and the author registered. When idempotencyKey matches a stroke
// already committed for the session, the existing row is returned
// instead of inserting a duplicate, so queued retries are safe.
func (s *StrokeStore) Append(sessionID, authorRole, authorName string, payload model.StrokePayload, idempotencyKey string) (*AppendResult, error) {
	var result *AppendResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := requireActiveSession(tx, sessionID); err != nil {
			return err
		}
		if err := requireParticipant(tx, sessionID, authorRole, authorName); err != nil {
			return err
		}

		if idempotencyKey != "" {
			var existing model.Stroke
			err := tx.Where("session_id = ? AND idempotency_key = ?", sessionID, idempotencyKey).
				First(&existing).Error
			if err == nil {
				result = &AppendResult{StrokeID: existing.ID, Sequence: existing.Sequence, Duplicate: true}
				return nil
			}
			if err != gorm.ErrRecordNotFound {
				return err
			}
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		// Read-max-then-insert inside one transaction. Concurrent
		// appends from other instances can still race on the same
		// maximum; ordering stays eventually consistent, which is
		// acceptable since only relative order within one author
		// lane matters for undo/redo.
		var maxSeq int64
		if err := tx.Model(&model.Stroke{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		stroke := &model.Stroke{
			ID:             uuid.NewString(),
			SessionID:      sessionID,
			AuthorRole:     authorRole,
			AuthorName:     authorName,
			Payload:        datatypes.JSON(raw),
			Sequence:       maxSeq + 1,
			IdempotencyKey: idempotencyKey,
			IsDeleted:      false,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(stroke).Error; err != nil {
			return err
		}
		result = &AppendResult{StrokeID: stroke.ID, Sequence: stroke.Sequence}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns every stroke of a session ascending by sequence,
// soft-deleted rows included; renderers filter them out, the undo
// resolver needs them.
func (s *StrokeStore) List(sessionID string) ([]model.Stroke, error) {
	var strokes []model.Stroke
	err := s.db.Where("session_id = ?", sessionID).
		Order("sequence ASC").
		Find(&strokes).Error
	if err != nil {
		return nil, err
	}
	return strokes, nil
}

// Undo hides the author's highest-sequence visible stroke.
func (s *StrokeStore) Undo(sessionID, authorRole, authorName string) error {
	return s.toggleLatest(sessionID, authorRole, authorName, false, true,
		syncerr.New(syncerr.CodeNothingToUndo, "nothing to undo"))
}

// Redo restores the author's highest-sequence hidden stroke. Only the
// single most recently hidden stroke is restorable; the lane model
// deliberately collapses deeper redo chains.
func (s *StrokeStore) Redo(sessionID, authorRole, authorName string) error {
	return s.toggleLatest(sessionID, authorRole, authorName, true, false,
		syncerr.New(syncerr.CodeNothingToRedo, "nothing to redo"))
}

func (s *StrokeStore) toggleLatest(sessionID, authorRole, authorName string, fromDeleted, toDeleted bool, emptyErr error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := requireParticipant(tx, sessionID, authorRole, authorName); err != nil {
			return err
		}
		var target model.Stroke
		err := tx.Where("session_id = ? AND author_role = ? AND author_name = ? AND is_deleted = ?",
			sessionID, authorRole, authorName, fromDeleted).
			Order("sequence DESC").
			First(&target).Error
		if err == gorm.ErrRecordNotFound {
			return emptyErr
		}
		if err != nil {
			return err
		}
		return tx.Model(&model.Stroke{}).
			Where("id = ?", target.ID).
			Updates(map[string]interface{}{"is_deleted": toDeleted, "updated_at": time.Now().UTC()}).Error
	})
}

// Clear soft-deletes strokes: the whole session when the caller is the
// teacher, only the caller's own lane otherwise. A student with an
// empty lane gets NothingToClear; the teacher clearing an empty board
// is a successful no-op.
func (s *StrokeStore) Clear(sessionID, authorRole, authorName string) (string, error) {
	scope := ClearScopeSelf
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := requireParticipant(tx, sessionID, authorRole, authorName); err != nil {
			return err
		}
		now := time.Now().UTC()
		if authorRole == model.RoleTeacher {
			scope = ClearScopeAll
			return tx.Model(&model.Stroke{}).
				Where("session_id = ? AND is_deleted = ?", sessionID, false).
				Updates(map[string]interface{}{"is_deleted": true, "updated_at": now}).Error
		}
		res := tx.Model(&model.Stroke{}).
			Where("session_id = ? AND author_role = ? AND author_name = ? AND is_deleted = ?",
				sessionID, authorRole, authorName, false).
			Updates(map[string]interface{}{"is_deleted": true, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return syncerr.New(syncerr.CodeNothingToClear, "nothing to clear")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return scope, nil
}

func requireActiveSession(tx *gorm.DB, sessionID string) error {
	var session model.Session
	if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return syncerr.New(syncerr.CodeInvalidSession, "session is not active")
		}
		return err
	}
	if !session.IsActive {
		return syncerr.New(syncerr.CodeInvalidSession, "session is not active")
	}
	return nil
}

func requireParticipant(tx *gorm.DB, sessionID, role, name string) error {
	if err := requireActiveSession(tx, sessionID); err != nil {
		return err
	}
	var count int64
	err := tx.Model(&model.Participant{}).
		Where("session_id = ? AND role = ? AND name = ?", sessionID, role, name).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return syncerr.New(syncerr.CodeUnregisteredParticipant, "participant is not registered in this session")
	}
	return nil
}
