package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/hoaxify/internal/apperr"
)

type creds struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse field order is part of the contract.
type loginResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c creds
	// an undecodable body is just bad credentials
	_ = json.NewDecoder(r.Body).Decode(&c)

	u, err := s.users.Authenticate(r.Context(), c.Email, c.Password)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindAuthentication:
			s.metrics.LoginsTotal.WithLabelValues("unauthorized").Inc()
		case apperr.KindForbidden:
			s.metrics.LoginsTotal.WithLabelValues("forbidden").Inc()
		}
		s.writeError(w, r, err)
		return
	}

	tok, err := s.tokens.CreateToken(r.Context(), u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	writeJSON(w, s.log, http.StatusOK, loginResponse{ID: u.ID, Username: u.Username, Token: tok})
}

// handleLogout revokes the presented token. Logout always answers 200; a
// storage failure while revoking is logged, not returned.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.tokens.Revoke(r.Context(), bearerToken(r)); err != nil {
		s.requestLog(r).WithError(err).Error("revoking token on logout")
	}
	writeJSON(w, s.log, http.StatusOK, message{Message: "Logout success"})
}
