package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/dom/skillswap/internal/api/middleware"
	"github.com/dom/skillswap/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR [handlers] encode response: %v", err)
	}
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindCapacityExceeded, domain.KindAlreadyRegistered, domain.KindAlreadyAccepted:
		return http.StatusConflict
	case domain.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Persistence failures are logged
// and hidden from the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("ERROR [handlers] %s %s: %v", r.Method, r.URL.Path, err)
		message = "Internal server error"
	}
	writeJSON(w, status, map[string]string{
		"status":  string(domain.OutcomeError),
		"code":    domain.KindOf(err).String(),
		"message": message,
	})
}

// writeOutcome sends a join outcome as JSON, or as a 303 to the caller's
// redirect path carrying success=<code> or error=<code>.
func writeOutcome(w http.ResponseWriter, r *http.Request, outcome domain.Outcome, status int) {
	if target, ok := middleware.RedirectTarget(r); ok {
		q := target.Query()
		if outcome.OK() {
			q.Set("success", outcome.Code)
		} else {
			q.Set("error", outcome.Code)
		}
		target.RawQuery = q.Encode()
		http.Redirect(w, r, target.String(), http.StatusSeeOther)
		return
	}
	writeJSON(w, status, outcome)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
