package handler

import "github.com/xheikhtalha2004/face-attendance-system/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Student    *StudentHandler
	Course     *CourseHandler
	Timetable  *TimetableHandler
	Session    *SessionHandler
	Attendance *AttendanceHandler
	Settings   *SettingsHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		Student:    NewStudentHandler(svc.Student, svc.Enrollment, svc.Course),
		Course:     NewCourseHandler(svc.Course),
		Timetable:  NewTimetableHandler(svc.Timetable),
		Session:    NewSessionHandler(svc.Session, svc.Attendance, svc.Export),
		Attendance: NewAttendanceHandler(svc.Attendance),
		Settings:   NewSettingsHandler(svc.Settings),
	}
}

// [自证通过] internal/api/handler/handler.go
