package admin

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"access-gate/middleware/accessctl"
	"access-gate/middleware/accessctl/domain"
)

const (
	ActionClearAll           = "clear_all"
	ActionClearType          = "clear_type"
	ActionToggleRegistration = "toggle_registration"
	ActionToggleLogin        = "toggle_login"
)

type rateLimitAction struct {
	Action string `json:"action"`
	Type   string `json:"type"`
}

type clearedBody struct {
	Message string `json:"message"`
	Cleared int    `json:"cleared"`
}

type toggledBody struct {
	Message string `json:"message"`
	Enabled bool   `json:"enabled"`
}

func (h *Handler) getRateLimits(w http.ResponseWriter, r *http.Request) {
	rep, err := h.quotas.Report(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	accessctl.WriteJSON(w, http.StatusOK, rep)
}

func (h *Handler) postRateLimits(w http.ResponseWriter, r *http.Request) {
	var body rateLimitAction
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		accessctl.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, _ := accessctl.PrincipalFrom(r.Context())
	log := h.log.With(zap.String("admin_id", p.UserID), zap.String("action", body.Action))

	switch body.Action {
	case ActionClearAll:
		n, err := h.quotas.ClearAll(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		log.Info("quotas cleared", zap.Int("cleared", n))
		accessctl.WriteJSON(w, http.StatusOK, clearedBody{
			Message: fmt.Sprintf("Cleared %d rate limits", n),
			Cleared: n,
		})

	case ActionClearType:
		n, err := h.quotas.ClearCategory(r.Context(), body.Type)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		log.Info("quotas cleared", zap.String("category", body.Type), zap.Int("cleared", n))
		accessctl.WriteJSON(w, http.StatusOK, clearedBody{
			Message: fmt.Sprintf("Cleared %d rate limits of type %q", n, body.Type),
			Cleared: n,
		})

	case ActionToggleRegistration:
		h.toggle(w, log, domain.ToggleRegistration, "Registration")

	case ActionToggleLogin:
		h.toggle(w, log, domain.ToggleLogin, "Login")

	default:
		accessctl.WriteError(w, http.StatusBadRequest, "Unknown action")
	}
}

func (h *Handler) toggle(w http.ResponseWriter, log *zap.Logger, t domain.Toggle, label string) {
	enabled, err := h.policy.Toggle(t)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	log.Info("quota policy toggled", zap.String("toggle", string(t)), zap.Bool("enabled", enabled))

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	accessctl.WriteJSON(w, http.StatusOK, toggledBody{
		Message: label + " rate limit " + state,
		Enabled: enabled,
	})
}
