package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xheikhtalha2004/face-attendance-system/internal/dto"
	"github.com/xheikhtalha2004/face-attendance-system/internal/service"
	"github.com/xheikhtalha2004/face-attendance-system/pkg/response"
)

// AttendanceHandler 识别与手动考勤 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// Recognize 识别一帧并提交考勤
// POST /api/v1/recognize
func (h *AttendanceHandler) Recognize(c *gin.Context) {
	var req dto.RecognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	image, ok := decodeBase64Image(req.Image)
	if !ok {
		response.BadRequest(c, 20001, "无效图像")
		return
	}

	outcome, err := h.attendanceSvc.Recognize(c.Request.Context(), image, req.Scope)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.Outcome(c, outcomeHTTPStatus(outcome.Result), toRecognizeResponse(outcome))
}

// Mark 手动考勤
// POST /api/v1/attendance/mark
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req dto.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	outcome, err := h.attendanceSvc.Mark(c.Request.Context(), req.SessionID, req.StudentID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.Outcome(c, outcomeHTTPStatus(outcome.Result), toRecognizeResponse(outcome))
}

// outcomeHTTPStatus 领域结果到 HTTP 状态的映射（§错误码约定）
func outcomeHTTPStatus(result string) int {
	switch result {
	case service.ResultMarked:
		return http.StatusOK
	case service.ResultUnknownFace:
		return http.StatusOK
	case service.ResultReentry, service.ResultIntruder,
		service.ResultSessionClosed, service.ResultAmbiguous:
		return http.StatusConflict
	case service.ResultNoActiveSession, service.ResultNoEnrolled:
		return http.StatusNotFound
	case service.ResultNoFace, service.ResultMultipleFaces:
		return http.StatusBadRequest
	case service.ResultTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusOK
	}
}

func toRecognizeResponse(outcome *service.RecognizeOutcome) *dto.RecognizeResponse {
	resp := &dto.RecognizeResponse{
		Result:     outcome.Result,
		Status:     outcome.Status,
		Confidence: outcome.Confidence,
		SessionID:  outcome.SessionID,
	}
	if outcome.Student != nil {
		resp.Student = &dto.StudentBrief{
			ID:         outcome.Student.StudentID,
			ExternalID: outcome.Student.ExternalID,
			Name:       outcome.Student.Name,
		}
	}
	return resp
}

func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidImage):
		response.BadRequest(c, 20001, "无效图像")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 20002, "学生不存在")
	case errors.Is(err, service.ErrAttendanceSessionNotFound):
		response.NotFound(c, 20003, "会话不存在")
	case errors.Is(err, service.ErrEmbeddingUnavailable):
		response.ServiceUnavailable(c, 50001, "识别服务暂不可用")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/attendance_handler.go
