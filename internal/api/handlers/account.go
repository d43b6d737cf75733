package handlers

import (
	"net/http"

	"github.com/dom/skillswap/internal/api/middleware"
	"github.com/dom/skillswap/internal/service"
)

type AccountHandler struct {
	ledger  *service.LedgerService
	catalog *service.CatalogService
}

func NewAccountHandler(ledger *service.LedgerService, catalog *service.CatalogService) *AccountHandler {
	return &AccountHandler{
		ledger:  ledger,
		catalog: catalog,
	}
}

type BalanceResponse struct {
	UserID  string `json:"userId"`
	Balance int64  `json:"balance"`
}

func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{UserID: userID.String(), Balance: balance})
}

func (h *AccountHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entries, err := h.ledger.History(r.Context(), userID, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AccountHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessions, err := h.catalog.MySessions(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}
