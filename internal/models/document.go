package models

import (
	"strings"
	"time"
)

// 文档摄取状态
const (
	DocumentStatusPending   = "pending"
	DocumentStatusChunking  = "chunking"
	DocumentStatusEmbedding = "embedding"
	DocumentStatusReady     = "ready"
	DocumentStatusFailed    = "failed"
)

// GuestPrefix 游客文档指纹前缀
const GuestPrefix = "guest_"

// Document 文档元数据表，以内容指纹（文件字节sha256）为主键
type Document struct {
	Fingerprint string    `gorm:"primaryKey;column:fingerprint;size:128" json:"fingerprint"`
	OwnerID     string    `gorm:"column:owner_id;size:128;index" json:"owner_id"`
	Filename    string    `gorm:"column:filename;size:255;not null" json:"filename"`
	FileSize    int64     `gorm:"column:file_size" json:"file_size"`
	PageCount   int       `gorm:"column:page_count" json:"page_count"`
	ChunkCount  int       `gorm:"column:chunk_count" json:"chunk_count"`
	Status      string    `gorm:"column:status;size:20;default:pending;index" json:"status"`
	Error       string    `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

// IsGuest 判断是否为游客文档
func (d *Document) IsGuest() bool {
	return strings.HasPrefix(d.Fingerprint, GuestPrefix)
}

// AnswerRecord 问答历史表（游客请求不落库）
type AnswerRecord struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	UserID      string    `gorm:"column:user_id;size:128;not null;index" json:"user_id"`
	Fingerprint string    `gorm:"column:fingerprint;size:128;not null;index" json:"fingerprint"`
	Mode        string    `gorm:"column:mode;size:20;not null" json:"mode"`
	Question    string    `gorm:"column:question;type:text" json:"question"`
	Answer      string    `gorm:"column:answer;type:text" json:"answer"`
	Confidence  float64   `gorm:"column:confidence" json:"confidence"`
	CreatedAt   time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (AnswerRecord) TableName() string {
	return "answer_records"
}
