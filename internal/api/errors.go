package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/hoaxify/internal/apperr"
	"github.com/sirupsen/logrus"
)

const msgInternal = "Internal server error"

// ErrorBody is the uniform error response.
type ErrorBody struct {
	Path             string            `json:"path"`
	Timestamp        int64             `json:"timestamp"`
	Message          string            `json:"message"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindDependency:
		return http.StatusBadGateway
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Unclassified errors are logged and hidden behind a
// generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := ErrorBody{Path: r.URL.Path, Timestamp: s.now().UnixMilli()}
	status := http.StatusInternalServerError

	if e, ok := apperr.As(err); ok {
		status = statusFor(e.Kind)
		body.Message = e.Message
		body.ValidationErrors = e.Fields
		if e.Kind == apperr.KindDependency {
			s.requestLog(r).WithError(err).Warn("dependency failure")
		}
	}
	if status == http.StatusInternalServerError {
		body.Message = msgInternal
		s.requestLog(r).WithError(err).Error("request failed")
	}
	writeJSON(w, s.log, status, body)
}

func writeJSON(w http.ResponseWriter, log logrus.FieldLogger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("write json")
	}
}

// message is the body of plain success responses.
type message struct {
	Message string `json:"message"`
}
