package model

import "time"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Participant identifies one person inside a session by the
// (session, role, name) triple. Status is the stored value; the
// presence store overlays the staleness window when listing.
type Participant struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID string    `gorm:"not null;size:36;index:idx_participants_session_role,priority:1" json:"sessionId"`
	Role      string    `gorm:"not null;size:10;index:idx_participants_session_role,priority:2" json:"role"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Status    string    `gorm:"not null;size:10" json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Participant) TableName() string {
	return "participants"
}
