package user

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/feedline/service/internal/middleware"
	"github.com/feedline/service/internal/response"
)

// Handler serves the current user's profile.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// GetMe godoc
//
//	@Summary		Get current user
//	@Description	Returns the account behind the bearer token. The password hash is never exposed.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	User
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/users/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	me, err := h.svc.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "User not found")
	case err != nil:
		h.log.Error().Err(err).Str("user_id", id).Msg("load current user failed")
		response.InternalError(w)
	default:
		response.OK(w, me)
	}
}
