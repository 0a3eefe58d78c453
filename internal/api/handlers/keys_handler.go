package handlers

import (
	"errors"
	"net/http"

	"marketmaker/internal/service"
)

// KeysHandler отвечает за учетные данные биржи
//
// Функции:
// - Маскированная информация о ключах (GET /api/v1/keys)
// - Сохранение ключей (PUT /api/v1/keys)
// - Удаление ключей (DELETE /api/v1/keys)
//
// Сами ключи наружу никогда не возвращаются: только sub_account_id,
// ip_whitelist и флаг наличия.
type KeysHandler struct {
	keys *service.KeysService
}

// NewKeysHandler создает новый KeysHandler
func NewKeysHandler(keys *service.KeysService) *KeysHandler {
	return &KeysHandler{keys: keys}
}

// GetKeys возвращает маскированную информацию о сохраненных ключах
// GET /api/v1/keys
func (h *KeysHandler) GetKeys(w http.ResponseWriter, r *http.Request) {
	info, err := h.keys.GetKeysInfo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load keys info")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// SaveKeysRequest - тело запроса сохранения ключей
type SaveKeysRequest struct {
	APIKey       string `json:"api_key"`
	PrivateKey   string `json:"private_key,omitempty"`
	SubAccountID string `json:"sub_account_id"`
	IPWhitelist  string `json:"ip_whitelist,omitempty"`
}

// SaveKeys шифрует и сохраняет учетные данные биржи
// PUT /api/v1/keys
func (h *KeysHandler) SaveKeys(w http.ResponseWriter, r *http.Request) {
	var req SaveKeysRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.keys.SaveKeys(req.APIKey, req.PrivateKey, req.SubAccountID, req.IPWhitelist); err != nil {
		if errors.Is(err, service.ErrEmptyAPIKey) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to save keys")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "keys saved; restart required to take effect"})
}

// DeleteKeys удаляет сохраненные учетные данные
// DELETE /api/v1/keys
func (h *KeysHandler) DeleteKeys(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.DeleteKeys(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete keys")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
