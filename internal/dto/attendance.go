package dto

// ── 考勤/识别模块 DTO ──

// RecognizeRequest 识别请求
type RecognizeRequest struct {
	Image string `json:"image" binding:"required"`          // base64 编码图像
	Scope string `json:"scope" binding:"omitempty,uuid"`    // 多会话并发时限定课程
}

// RecognizeResponse 识别结果响应（result 为 §领域结果 之一）
type RecognizeResponse struct {
	Result     string        `json:"result"`
	Student    *StudentBrief `json:"student,omitempty"`
	Status     string        `json:"status,omitempty"` // PRESENT | LATE（仅 MARKED）
	Confidence float64       `json:"confidence,omitempty"`
	SessionID  string        `json:"sessionId,omitempty"`
}

// StudentBrief 学生简要信息（嵌入识别响应）
type StudentBrief struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
}

// MarkAttendanceRequest 手动考勤请求
type MarkAttendanceRequest struct {
	SessionID string `json:"sessionId" binding:"required,uuid"`
	StudentID string `json:"studentId" binding:"required,uuid"`
}

// AttendanceRowResponse 会话考勤明细
type AttendanceRowResponse struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"sessionId"`
	Student      *StudentBrief `json:"student,omitempty"`
	Status       string        `json:"status"`
	CheckInTime  *string       `json:"checkInTime,omitempty"`
	LastSeenTime *string       `json:"lastSeenTime,omitempty"`
	Confidence   *float64      `json:"confidence,omitempty"`
	Method       string        `json:"method"`
}

// [自证通过] internal/dto/attendance.go
