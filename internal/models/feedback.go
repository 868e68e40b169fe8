package models

import "time"

// 重训状态机状态
const (
	RetrainStateIdle         = "idle"
	RetrainStateAccumulating = "accumulating"
	RetrainStatePending      = "retrain_pending"
	RetrainStateRetraining   = "retraining"
)

// FeedbackEvent 反馈事件表。写入后不可变更，修正以新事件表达
type FeedbackEvent struct {
	ID              uint      `gorm:"primaryKey;column:id" json:"id"`
	UserID          string    `gorm:"column:user_id;size:128;not null;index" json:"user_id"`
	Fingerprint     string    `gorm:"column:fingerprint;size:128;not null;index" json:"fingerprint"`
	ChunkID         string    `gorm:"column:chunk_id;size:160;not null" json:"chunk_id"`
	Rating          int       `gorm:"column:rating" json:"rating"`
	CorrectedOutput string    `gorm:"column:corrected_output;type:text" json:"corrected_output,omitempty"`
	Confidential    bool      `gorm:"column:confidential;not null;default:false" json:"confidential"`
	CreatedAt       time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (FeedbackEvent) TableName() string {
	return "feedback_events"
}

// RetrainState 用户重训状态表。PendingCount只统计非机密反馈
type RetrainState struct {
	UserID        string     `gorm:"primaryKey;column:user_id;size:128" json:"user_id"`
	State         string     `gorm:"column:state;size:20;not null;default:accumulating" json:"state"`
	PendingCount  int        `gorm:"column:pending_count;not null;default:0" json:"pending_count"`
	LastRetrainAt *time.Time `gorm:"column:last_retrain_at" json:"last_retrain_at,omitempty"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (RetrainState) TableName() string {
	return "retrain_states"
}
