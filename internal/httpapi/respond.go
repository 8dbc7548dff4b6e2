package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/apperr"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

// respondError maps application errors onto HTTP statuses. Unknown
// errors are logged server-side and surfaced as a bare 500.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.Get(err)
	if appErr == nil {
		s.logger.Error("unhandled error",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, errorBody{
			Error: "internal error",
			Code:  string(apperr.KindInternal),
		})
		return
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", string(appErr.Kind)),
			zap.Error(err))
	}
	s.respondJSON(w, status, errorBody{Error: appErr.Message, Code: string(appErr.Kind)})
}
