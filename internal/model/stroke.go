package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"

	ToolPen    = "pen"
	ToolEraser = "eraser"
)

// Point is a single 2D coordinate of a stroke path.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokePayload is the drawing content of a stroke as produced by the
// client: the tool, its styling and the ordered pointer path.
type StrokePayload struct {
	Tool   string  `json:"tool"`
	Color  string  `json:"color"`
	Size   float64 `json:"size"`
	Points []Point `json:"points"`
}

// Stroke is one committed drawing gesture. Strokes are append-only:
// undo/redo/clear only toggle IsDeleted, they never remove rows, and
// Sequence is unique within a session and never reused.
type Stroke struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	SessionID      string         `gorm:"not null;size:36;index:idx_strokes_session_sequence,priority:1" json:"sessionId"`
	AuthorRole     string         `gorm:"not null;size:10" json:"authorRole"`
	AuthorName     string         `gorm:"not null;size:255" json:"authorName"`
	Payload        datatypes.JSON `gorm:"not null" json:"stroke"`
	Sequence       int64          `gorm:"not null;index:idx_strokes_session_sequence,priority:2" json:"sequence"`
	IdempotencyKey string         `gorm:"size:36;index" json:"-"`
	IsDeleted      bool           `gorm:"not null;default:false" json:"isDeleted"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (Stroke) TableName() string {
	return "strokes"
}
