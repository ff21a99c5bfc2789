package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/example/hoaxify/internal/apperr"
	"github.com/example/hoaxify/internal/user"
	"github.com/gorilla/mux"
)

const msgInvalidBody = "Invalid request body"

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation(msgInvalidBody, nil)
	}
	return nil
}

// pathID is safe to parse: the route only matches digits.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in user.RegisterInput
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.users.Register(r.Context(), in); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, message{Message: "User created"})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Activate(r.Context(), mux.Vars(r)["token"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, message{Message: "Account is activated"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, size := user.ParsePagination(q.Get("page"), q.Get("size"))

	res, err := s.users.List(r.Context(), callerID(r.Context()), page, size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, res)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	p, err := s.users.Get(r.Context(), pathID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, p)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	caller := callerID(r.Context())
	if caller == 0 || caller != id {
		s.writeError(w, r, apperr.Forbidden(apperr.MsgUnauthorizedUpdate))
		return
	}

	var in user.UpdateInput
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.users.Update(r.Context(), caller, id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, p)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Delete(r.Context(), callerID(r.Context()), pathID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, message{Message: "User deleted"})
}
