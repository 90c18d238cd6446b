package api

import (
	"net/http"

	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/auth"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/pkg/httputil"
)

// ListSettings returns every stored Setting with secret values redacted.
func (h *Handlers) ListSettings(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.Settings.All())
}

type setSettingRequest struct {
	Value string `json:"value"`
}

// SetSetting upserts one Setting key's value. The next Settings Store read
// sees it at once; the upstream client, webhook ingestor and notification
// channels keep the values they copied at process start until a restart.
func (h *Handlers) SetSetting(w http.ResponseWriter, r *http.Request) {
	var req setSettingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := domain.SettingKey(urlParam(r, "key"))
	if key == "" {
		writeErr(w, apperr.Validation("key is required"))
		return
	}

	updatedBy := "unknown"
	if claims, ok := auth.FromContext(r.Context()); ok {
		updatedBy = claims.Email
	}

	if err := h.Settings.Set(r.Context(), key, req.Value, updatedBy); err != nil {
		writeErr(w, apperr.Internal("set setting", err))
		return
	}
	st, _ := h.Settings.Get(key)
	st.Value = st.Redacted()
	httputil.OK(w, st)
}
