package model

import (
	"time"
)

type Session struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Code        string    `gorm:"not null;size:8;index:idx_sessions_code" json:"code"`
	TeacherName string    `gorm:"not null;size:255" json:"teacherName"`
	IsActive    bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Session) TableName() string {
	return "sessions"
}
