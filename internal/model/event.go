package model

import (
	"time"

	"gorm.io/datatypes"
)

// Event is one entry of a named broadcast channel. Channels are
// pruned to the most recent entries on publish, so the table stays
// bounded per channel.
type Event struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Channel   string         `gorm:"not null;size:255;index:idx_events_channel_sequence,priority:1" json:"channel"`
	Name      string         `gorm:"not null;size:255;column:event" json:"event"`
	Payload   datatypes.JSON `json:"payload"`
	Sequence  int64          `gorm:"not null;index:idx_events_channel_sequence,priority:2" json:"sequence"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (Event) TableName() string {
	return "events"
}
