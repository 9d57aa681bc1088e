package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"access-gate/middleware/accessctl"
	"access-gate/middleware/accessctl/application"
	"access-gate/middleware/accessctl/domain"
)

type banPatch struct {
	IsBanned    *bool  `json:"isBanned"`
	BanDuration string `json:"banDuration"`
	BanReason   string `json:"banReason"`
}

// AccountView é a resposta de PATCH /users/{id}/ban. Campos nulos saem como null.
type AccountView struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	IsBanned   bool       `json:"isBanned"`
	BanExpires *time.Time `json:"banExpires"`
	BanReason  *string    `json:"banReason"`
}

func viewOf(a domain.Account) AccountView {
	return AccountView{
		ID:         a.ID,
		Role:       a.Role,
		IsBanned:   a.Ban.IsBanned,
		BanExpires: a.Ban.ExpiresAt,
		BanReason:  a.Ban.Reason,
	}
}

func (h *Handler) patchBan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !application.ValidAccountID(id) {
		accessctl.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var body banPatch
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		accessctl.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.IsBanned == nil {
		accessctl.WriteError(w, http.StatusBadRequest, "isBanned is required")
		return
	}

	p, _ := accessctl.PrincipalFrom(r.Context())
	acc, err := h.bans.Apply(r.Context(), p.UserID, id, application.BanRequest{
		Banned:   *body.IsBanned,
		Duration: body.BanDuration,
		Reason:   body.BanReason,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.log.Info("account ban updated",
		zap.String("admin_id", p.UserID),
		zap.String("user_id", id),
		zap.Bool("banned", acc.Ban.IsBanned),
		zap.String("duration", body.BanDuration))
	accessctl.WriteJSON(w, http.StatusOK, viewOf(acc))
}
