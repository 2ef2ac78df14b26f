package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/lcroft/pond/internal/platform/errors"
	"github.com/lcroft/pond/internal/platform/i18n"
)

type errorBody struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders a domain error as JSON with a localized message.
// Anything that is not a domain error becomes an opaque 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(apperrors.CodeUnknown, "internal error", err)
	}
	status := appErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.Printf("%s %s: %s: %v", r.Method, r.URL.Path, appErr.Code, err)
	}
	tag := i18n.ResolveTag(r)
	writeJSON(w, status, errorBody{
		Code:    appErr.Code,
		Message: i18n.Message(tag, appErr.Code, appErr.Metadata),
	})
}
