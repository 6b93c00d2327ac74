package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/emalabs/ask-ema/internal/core/domain"
)

// genericErrorMessage is the only text a caller ever sees for a system-side
// failure. Full detail goes to the log.
const genericErrorMessage = "There was an error processing your request"

func asUserError(err error) *domain.UserError {
	var ue *domain.UserError
	if errors.As(err, &ue) {
		return ue
	}
	return nil
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ue := asUserError(err); ue != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": ue.Message,
			"data":  ue.Data,
		})
		return
	}

	logRequestError(r, "request failed", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": genericErrorMessage,
	})
}

func logRequestError(r *http.Request, msg string, err error) {
	slog.Error(msg,
		"request_id", requestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
}
