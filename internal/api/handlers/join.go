package handlers

import (
	"net/http"

	"github.com/dom/skillswap/internal/api/middleware"
	"github.com/dom/skillswap/internal/service"
)

// JoinHandler exposes the two settlement flows. Both answer with an Outcome,
// or redirect when the request names a ?redirect= path.
type JoinHandler struct {
	settlement *service.SettlementService
}

func NewJoinHandler(settlement *service.SettlementService) *JoinHandler {
	return &JoinHandler{settlement: settlement}
}

func (h *JoinHandler) JoinCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sessionID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, "Invalid course id", http.StatusBadRequest)
		return
	}

	result, err := h.settlement.JoinCourse(r.Context(), sessionID, userID)
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	writeOutcome(w, r, service.CourseOutcome(result, err), status)
}

func (h *JoinHandler) JoinExchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sessionID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, "Invalid exchange id", http.StatusBadRequest)
		return
	}

	result, err := h.settlement.JoinExchange(r.Context(), sessionID, userID)
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	writeOutcome(w, r, service.ExchangeOutcome(result, err), status)
}
