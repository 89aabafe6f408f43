package handlers

import (
	"net/http"

	"github.com/zatekoja/campuslink/backend/internal/api/middleware"
	"github.com/zatekoja/campuslink/backend/internal/application/services"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

// UniversityHandler handles university lookup and admin maintenance
type UniversityHandler struct {
	service *services.UniversityService
}

// NewUniversityHandler creates a new university handler
func NewUniversityHandler(service *services.UniversityService) *UniversityHandler {
	return &UniversityHandler{service: service}
}

func respondWithUniversities(w http.ResponseWriter, universities []*entities.University) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(universities),
		"data":    universities,
	})
}

// ListUniversities handles GET /api/universities
func (h *UniversityHandler) ListUniversities(w http.ResponseWriter, r *http.Request) {
	universities, err := h.service.List(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithUniversities(w, universities)
}

// GetUniversity handles GET /api/universities/{id}
func (h *UniversityHandler) GetUniversity(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    u,
	})
}

// Search handles GET /api/universities/search?query=
func (h *UniversityHandler) Search(w http.ResponseWriter, r *http.Request) {
	universities, err := h.service.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithUniversities(w, universities)
}

// Nearby handles GET /api/universities/nearby?latitude=&longitude=&radiusKm=
func (h *UniversityHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, hasLat, err := queryFloat(r, "latitude")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	lon, hasLon, err := queryFloat(r, "longitude")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if !hasLat || !hasLon {
		respondWithError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	radiusKm, _, err := queryFloat(r, "radiusKm")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	universities, err := h.service.Nearby(r.Context(), entities.GeoPoint{Longitude: lon, Latitude: lat}, radiusKm)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithUniversities(w, universities)
}

// CreateUniversity handles POST /api/universities
func (h *UniversityHandler) CreateUniversity(w http.ResponseWriter, r *http.Request) {
	var input entities.UniversityInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	u, err := h.service.Create(r.Context(), input, middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "University created successfully",
		"data":    u,
	})
}

// UpdateUniversity handles PUT /api/universities/{id}
func (h *UniversityHandler) UpdateUniversity(w http.ResponseWriter, r *http.Request) {
	var patch entities.UniversityInput
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	u, err := h.service.Update(r.Context(), r.PathValue("id"), patch, middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "University updated successfully",
		"data":    u,
	})
}

// DeleteUniversity handles DELETE /api/universities/{id}
func (h *UniversityHandler) DeleteUniversity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithAppError(w, r, apperrors.NewValidationError("university ID is required"))
		return
	}

	if _, err := h.service.Delete(r.Context(), id, middleware.PrincipalFromContext(r.Context())); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "University deleted successfully",
	})
}
