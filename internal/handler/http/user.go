package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/windfall/speakscore/internal/errors"
	"github.com/windfall/speakscore/internal/service"
	"github.com/windfall/speakscore/pkg/response"
)

// UserHandler handles learner record endpoints.
type UserHandler struct {
	log         zerolog.Logger
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(log zerolog.Logger, userService *service.UserService) *UserHandler {
	return &UserHandler{
		log:         log,
		userService: userService,
	}
}

// Create handles POST /user
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	user, err := h.userService.CreateUser(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Created(w, user)
}

func (h *UserHandler) handleError(w http.ResponseWriter, err error) {
	if appErr, ok := errors.As(err); ok {
		if appErr.HTTPStatus() >= http.StatusInternalServerError {
			h.log.Error().Err(err).Msg("Failed to create user")
		}
		response.Error(w, appErr.HTTPStatus(), &response.ErrorBody{Error: appErr.Message})
		return
	}
	h.log.Error().Err(err).Msg("Internal server error")
	response.InternalError(w, "internal server error")
}
