package handlers

import (
	"errors"
	"net/http"

	"marketmaker/internal/models"
	"marketmaker/internal/service"
)

// ConfigHandler отвечает за системную конфигурацию
//
// Функции:
// - Получение конфигурации (GET /api/v1/config)
// - Частичное обновление (PATCH /api/v1/config)
type ConfigHandler struct {
	config service.ConfigServiceInterface
}

// NewConfigHandler создает новый ConfigHandler
func NewConfigHandler(config service.ConfigServiceInterface) *ConfigHandler {
	return &ConfigHandler{config: config}
}

// GetConfig возвращает текущую системную конфигурацию
// GET /api/v1/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.GetConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfigResponse - ответ на обновление конфигурации
type UpdateConfigResponse struct {
	Config          *models.AppConfig `json:"config"`
	RestartRequired bool              `json:"restart_required"`
}

// UpdateConfig частично обновляет системную конфигурацию
// PATCH /api/v1/config
func (h *ConfigHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateConfigRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg, restartRequired, err := h.config.UpdateConfig(&req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update config")
		return
	}
	writeJSON(w, http.StatusOK, UpdateConfigResponse{
		Config:          cfg,
		RestartRequired: restartRequired,
	})
}
