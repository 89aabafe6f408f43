package handlers

import (
	"net/http"

	"github.com/zatekoja/campuslink/backend/internal/api/middleware"
	"github.com/zatekoja/campuslink/backend/internal/application/services"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

// UtilityHandler handles campus utility directory requests
type UtilityHandler struct {
	service *services.DirectoryService
}

// NewUtilityHandler creates a new utility handler
func NewUtilityHandler(service *services.DirectoryService) *UtilityHandler {
	return &UtilityHandler{service: service}
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// ListUtilities handles GET /api/utilities?category=&latitude=&longitude=&radius=&verified=
// radius is in metres. Without coordinates the full visible listing is returned;
// admins may narrow it with verified=true|false.
func (h *UtilityHandler) ListUtilities(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	category := r.URL.Query().Get("category")

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
	radius, _, err := queryFloat(r, "radius")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	verified, err := queryBool(r, "verified")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var utilities []*entities.Utility
	switch {
	case hasLat && hasLon && verified != nil:
		err = apperrors.NewValidationError("verified cannot be combined with coordinates")
	case hasLat && hasLon:
		point := entities.GeoPoint{Longitude: lon, Latitude: lat}
		utilities, err = h.service.Nearby(r.Context(), point, radius/1000, category, principal)
	case hasLat || hasLon:
		err = apperrors.NewValidationError("latitude and longitude must be supplied together")
	default:
		utilities, err = h.service.List(r.Context(), category, verified, principal)
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, utilities)
}

// GetUtility handles GET /api/utilities/{id}
func (h *UtilityHandler) GetUtility(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), r.PathValue("id"), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, u)
}

// ByCategory handles GET /api/utilities/category/{category}
func (h *UtilityHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	utilities, err := h.service.ByCategory(r.Context(), r.PathValue("category"), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, utilities)
}

// Search handles GET /api/utilities/search/{query}
func (h *UtilityHandler) Search(w http.ResponseWriter, r *http.Request) {
	utilities, err := h.service.Search(r.Context(), r.PathValue("query"), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, utilities)
}

// CreateUtility handles POST /api/utilities
func (h *UtilityHandler) CreateUtility(w http.ResponseWriter, r *http.Request) {
	var input entities.UtilityInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	u, err := h.service.Submit(r.Context(), input, middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, u)
}

// UpdateUtility handles PUT /api/utilities/{id}
func (h *UtilityHandler) UpdateUtility(w http.ResponseWriter, r *http.Request) {
	var patch entities.UtilityInput
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	u, err := h.service.Update(r.Context(), r.PathValue("id"), patch, middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, u)
}

// DeleteUtility handles DELETE /api/utilities/{id}
func (h *UtilityHandler) DeleteUtility(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id"), middleware.PrincipalFromContext(r.Context())); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Utility removed"})
}

// AddReview handles POST /api/utilities/{id}/review
func (h *UtilityHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	u, err := h.service.Review(r.Context(), r.PathValue("id"), req.Rating, req.Comment, middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, u)
}

// MySubmissions handles GET /api/utilities/mine
func (h *UtilityHandler) MySubmissions(w http.ResponseWriter, r *http.Request) {
	utilities, err := h.service.MySubmissions(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, utilities)
}

// AdminAll handles GET /api/utilities/admin/all
func (h *UtilityHandler) AdminAll(w http.ResponseWriter, r *http.Request) {
	utilities, err := h.service.AdminAll(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, utilities)
}

// Pending handles GET /api/utilities/admin/pending
func (h *UtilityHandler) Pending(w http.ResponseWriter, r *http.Request) {
	utilities, err := h.service.Pending(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, utilities)
}

// Verify handles PUT /api/utilities/admin/{id}/verify
func (h *UtilityHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, entities.ModerationDecision{Verify: true}, "Utility verified")
}

// Reject handles PUT /api/utilities/admin/{id}/reject
func (h *UtilityHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	h.moderate(w, r, entities.ModerationDecision{Reason: req.Reason}, "Utility rejected")
}

func (h *UtilityHandler) moderate(w http.ResponseWriter, r *http.Request, decision entities.ModerationDecision, message string) {
	u, err := h.service.Moderate(r.Context(), r.PathValue("id"), decision, middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"utility": u,
	})
}
