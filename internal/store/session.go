package store

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/syncerr"
	"gorm.io/gorm"
)

const codeLength = 4

// SessionStore owns the session lifecycle: creation with join-code
// allocation, lookup by code, and deactivation. Sessions are never
// deleted; ending one flips is_active and forces students offline.
type SessionStore struct {
	db           *gorm.DB
	codeAttempts int
}

func NewSessionStore(db *gorm.DB, codeAttempts int) *SessionStore {
	if codeAttempts <= 0 {
		codeAttempts = 25
	}
	return &SessionStore{db: db, codeAttempts: codeAttempts}
}

// Create allocates a join code, inserts the session and registers the
// teacher as an online participant in one transaction.
func (s *SessionStore) Create(teacherName string) (*model.Session, error) {
	var created *model.Session
	err := s.db.Transaction(func(tx *gorm.DB) error {
		code, err := s.allocateCode(tx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		session := &model.Session{
			ID:          uuid.NewString(),
			Code:        code,
			TeacherName: teacherName,
			IsActive:    true,
			CreatedAt:   now,
		}
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		participant := &model.Participant{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Role:      model.RoleTeacher,
			Name:      teacherName,
			Status:    model.StatusOnline,
			UpdatedAt: now,
		}
		if err := tx.Create(participant).Error; err != nil {
			return err
		}
		created = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// allocateCode retries random fixed-length numeric codes until one is
// free among active sessions, giving up after codeAttempts tries.
func (s *SessionStore) allocateCode(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		code := randomCode()
		var count int64
		if err := tx.Model(&model.Session{}).
			Where("code = ? AND is_active = ?", code, true).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", syncerr.New(syncerr.CodeAllocationExhausted, "could not allocate session code, try again")
}

func randomCode() string {
	return fmt.Sprintf("%0*d", codeLength, rand.Intn(10000))
}

// End deactivates a session and marks every student participant
// offline. Strokes are left untouched so the board history survives.
func (s *SessionStore) End(sessionID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var session model.Session
		if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return syncerr.New(syncerr.CodeSessionNotFound, "session not found")
			}
			return err
		}
		now := time.Now().UTC()
		if err := tx.Model(&model.Session{}).
			Where("id = ?", sessionID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.Participant{}).
			Where("session_id = ? AND role = ?", sessionID, model.RoleStudent).
			Updates(map[string]interface{}{"status": model.StatusOffline, "updated_at": now}).Error
	})
}

// LookupByCode resolves a join code to its active session.
func (s *SessionStore) LookupByCode(code string) (*model.Session, error) {
	var session model.Session
	err := s.db.Where("code = ? AND is_active = ?", code, true).First(&session).Error
	if err == nil {
		return &session, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	// Ended sessions keep their code; distinguish "never existed"
	// from "no longer active" for the joining client.
	var count int64
	if err := s.db.Model(&model.Session{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, syncerr.New(syncerr.CodeSessionInactive, "session is no longer active")
	}
	return nil, syncerr.New(syncerr.CodeSessionNotFound, "session not found")
}

// Get returns a session by id regardless of its active flag.
func (s *SessionStore) Get(sessionID string) (*model.Session, error) {
	var session model.Session
	if err := s.db.First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, syncerr.New(syncerr.CodeSessionNotFound, "session not found")
		}
		return nil, err
	}
	return &session, nil
}
