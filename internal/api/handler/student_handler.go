package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/xheikhtalha2004/face-attendance-system/internal/dto"
	"github.com/xheikhtalha2004/face-attendance-system/internal/service"
	"github.com/xheikhtalha2004/face-attendance-system/pkg/response"
)

// StudentHandler 学生模块 HTTP 处理器
type StudentHandler struct {
	studentSvc    service.StudentService
	enrollmentSvc service.EnrollmentService
	courseSvc     service.CourseService
}

// NewStudentHandler 创建 StudentHandler
func NewStudentHandler(studentSvc service.StudentService, enrollmentSvc service.EnrollmentService, courseSvc service.CourseService) *StudentHandler {
	return &StudentHandler{
		studentSvc:    studentSvc,
		enrollmentSvc: enrollmentSvc,
		courseSvc:     courseSvc,
	}
}

// ListStudents 学生列表
// GET /api/v1/students
func (h *StudentHandler) ListStudents(c *gin.Context) {
	var req dto.StudentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	students, err := h.studentSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": students})
}

// GetStudent 学生详情
// GET /api/v1/students/:id
func (h *StudentHandler) GetStudent(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "学生ID不能为空")
		return
	}

	student, err := h.studentSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.OK(c, student)
}

// CreateStudent 创建学生
// POST /api/v1/students
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	var req dto.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	student, err := h.studentSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.Created(c, student)
}

// UpdateStudent 更新学生
// PUT /api/v1/students/:id
func (h *StudentHandler) UpdateStudent(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "学生ID不能为空")
		return
	}

	var req dto.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	student, err := h.studentSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.OK(c, student)
}

// DeleteStudent 软删除学生（学号可复用，历史考勤保留）
// DELETE /api/v1/students/:id
func (h *StudentHandler) DeleteStudent(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "学生ID不能为空")
		return
	}

	if err := h.studentSvc.Delete(c.Request.Context(), id); err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.OK(c, nil)
}

// EnrollFrames 注册采集帧
// POST /api/v1/students/:id/enroll-frames
func (h *StudentHandler) EnrollFrames(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "学生ID不能为空")
		return
	}

	var req dto.EnrollFramesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	frames := make([][]byte, 0, len(req.Frames))
	for _, f := range req.Frames {
		data, ok := decodeBase64Image(f)
		if !ok {
			response.BadRequest(c, 20001, "存在无法解码的帧")
			return
		}
		frames = append(frames, data)
	}

	result, err := h.enrollmentSvc.EnrollFrames(c.Request.Context(), id, frames, req.MaxEmbeddings)
	if err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.Created(c, result)
}

// EnrollCourse 选课
// POST /api/v1/students/:id/enrollments
func (h *StudentHandler) EnrollCourse(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "学生ID不能为空")
		return
	}

	var req dto.EnrollCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.courseSvc.Enroll(c.Request.Context(), id, req.CourseID); err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.Created(c, nil)
}

// UnenrollCourse 退课
// DELETE /api/v1/students/:id/enrollments/:courseId
func (h *StudentHandler) UnenrollCourse(c *gin.Context) {
	id := c.Param("id")
	courseID := c.Param("courseId")
	if id == "" || courseID == "" {
		response.BadRequest(c, 10001, "参数不能为空")
		return
	}

	if err := h.courseSvc.Unenroll(c.Request.Context(), id, courseID); err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleStudentError 学生模块错误映射
func (h *StudentHandler) handleStudentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 20002, "学生不存在")
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 30002, "课程不存在")
	case errors.Is(err, service.ErrInvalidIDFormat):
		response.BadRequest(c, 20004, "学号格式不符合规则")
	case errors.Is(err, service.ErrDuplicateStudentID):
		response.Conflict(c, 20005, "学号已被占用")
	case errors.Is(err, service.ErrEnrollmentConflict):
		response.Conflict(c, 20006, "学生已选该课程")
	case errors.Is(err, service.ErrEnrollmentNotFound):
		response.NotFound(c, 20007, "选课记录不存在")
	case errors.Is(err, service.ErrInsufficientQuality):
		response.Unprocessable(c, 20008, "高质量帧不足，请重新采集")
	case errors.Is(err, service.ErrEmbeddingUnavailable):
		response.ServiceUnavailable(c, 50001, "识别服务暂不可用")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/student_handler.go
