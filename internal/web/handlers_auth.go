package web

import (
	"net/http"

	"gradebook/internal/auth"
	"gradebook/internal/logging"
	"gradebook/internal/store"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

// userView is the client-facing shape of a user. PasswordHash never leaves
// the server.
type userView struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	Name     string  `json:"name"`
	Email    *string `json:"email,omitempty"`
}

func viewUser(u store.User) userView {
	return userView{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		Name:     u.Name,
		Email:    u.Email,
	}
}

// handleLogin verifies credentials and issues a session token. Unknown
// usernames, wrong passwords and deactivated accounts all get the same 401
// so the endpoint cannot be used to probe for accounts.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}

	user, found, err := s.store.Users.FindOne(r.Context(), s.store.DB(), store.Criteria{"username": req.Username})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !found || !user.Active || !auth.CheckPassword(user.PasswordHash, req.Password) {
		logging.FromContext(r.Context()).Warn("login rejected", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "AUTH_BAD_CREDENTIALS", "invalid username or password")
		return
	}

	token, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("login", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: viewUser(user)})
}
