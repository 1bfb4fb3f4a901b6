package database

import (
	"github.com/liveboard/api/internal/config"
	"github.com/liveboard/api/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Session{},
		&model.Stroke{},
		&model.Participant{},
		&model.Event{},
	)
	if err != nil {
		return err
	}

	// Join codes must be unique among active sessions only; ended
	// sessions keep their code so history stays intact.
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_code_active ON sessions(code) WHERE is_active")

	// One participant row per (session, role, name) lane.
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_lane ON participants(session_id, role, name)")

	// Lane scan used by undo/redo/clear.
	db.Exec("CREATE INDEX IF NOT EXISTS idx_strokes_lane_sequence ON strokes(session_id, author_role, author_name, sequence)")

	return nil
}
