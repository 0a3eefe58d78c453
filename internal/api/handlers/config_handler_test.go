package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConfigHandler_GetConfig(t *testing.T) {
	h := NewConfigHandler(NewMockConfigService())

	rec := httptest.NewRecorder()
	h.GetConfig(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BTC_USDT_Perp") {
		t.Errorf("symbol missing from response: %s", body)
	}
	// Зашифрованный SMTP-пароль не должен утекать в API
	if strings.Contains(body, "smtp_password") || strings.Contains(body, "encrypted") {
		t.Errorf("smtp password leaked into response: %s", body)
	}
}

func TestConfigHandler_UpdateConfig(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantRestart bool
	}{
		{"interval only, no restart", `{"quote_interval_ms": 500}`, http.StatusOK, false},
		{"symbol change requires restart", `{"symbol": "ETH_USDT_Perp"}`, http.StatusOK, true},
		{"same symbol, no restart", `{"symbol": "BTC_USDT_Perp"}`, http.StatusOK, false},
		{"invalid interval", `{"quote_interval_ms": 0}`, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewConfigHandler(NewMockConfigService())
			req := httptest.NewRequest(http.MethodPatch, "/api/v1/config", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.UpdateConfig(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status code = %d, want %d, body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if rec.Code != http.StatusOK {
				return
			}
			var resp UpdateConfigResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.RestartRequired != tt.wantRestart {
				t.Errorf("restart_required = %v, want %v", resp.RestartRequired, tt.wantRestart)
			}
		})
	}
}
