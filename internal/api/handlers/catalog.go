package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dom/skillswap/internal/api/middleware"
	"github.com/dom/skillswap/internal/service"
)

type CatalogHandler struct {
	catalog    *service.CatalogService
	enrollment *service.EnrollmentService
}

func NewCatalogHandler(catalog *service.CatalogService, enrollment *service.EnrollmentService) *CatalogHandler {
	return &CatalogHandler{
		catalog:    catalog,
		enrollment: enrollment,
	}
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	courses, err := h.catalog.AvailableCourses(r.Context(), userID, r.URL.Query().Get("skill"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *CatalogHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req service.CourseInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	course, err := h.catalog.CreateCourse(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *CatalogHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, "Invalid course id", http.StatusBadRequest)
		return
	}

	course, err := h.catalog.GetCourse(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *CatalogHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	courseID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, "Invalid course id", http.StatusBadRequest)
		return
	}

	var req service.CourseInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	course, err := h.catalog.UpdateCourse(r.Context(), userID, courseID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *CatalogHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	courseID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, "Invalid course id", http.StatusBadRequest)
		return
	}

	if err := h.catalog.DeleteCourse(r.Context(), userID, courseID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, "Invalid course id", http.StatusBadRequest)
		return
	}

	users, err := h.enrollment.Attendees(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, UserResponse{ID: u.ID.String(), DisplayName: u.DisplayName})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CatalogHandler) LeaveCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	courseID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, "Invalid course id", http.StatusBadRequest)
		return
	}

	if err := h.catalog.LeaveCourse(r.Context(), userID, courseID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *CatalogHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	exchanges, err := h.catalog.OpenExchanges(r.Context(), userID, r.URL.Query().Get("skill"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exchanges)
}

func (h *CatalogHandler) CreateExchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req service.ExchangeInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	exchange, err := h.catalog.CreateExchange(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exchange)
}

func (h *CatalogHandler) GetExchange(w http.ResponseWriter, r *http.Request) {
	exchangeID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, "Invalid exchange id", http.StatusBadRequest)
		return
	}

	exchange, err := h.catalog.GetExchange(r.Context(), exchangeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exchange)
}

func (h *CatalogHandler) UpdateExchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	exchangeID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, "Invalid exchange id", http.StatusBadRequest)
		return
	}

	var req service.ExchangeInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	exchange, err := h.catalog.UpdateExchange(r.Context(), userID, exchangeID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exchange)
}

func (h *CatalogHandler) DeleteExchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	exchangeID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, "Invalid exchange id", http.StatusBadRequest)
		return
	}

	if err := h.catalog.DeleteExchange(r.Context(), userID, exchangeID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
