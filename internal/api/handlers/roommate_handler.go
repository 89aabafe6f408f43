package handlers

import (
	"net/http"

	"github.com/zatekoja/campuslink/backend/internal/api/middleware"
	"github.com/zatekoja/campuslink/backend/internal/application/services"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

// RoommateHandler handles roommate profile and matching requests
type RoommateHandler struct {
	service *services.RoommateService
}

// NewRoommateHandler creates a new roommate handler
func NewRoommateHandler(service *services.RoommateService) *RoommateHandler {
	return &RoommateHandler{service: service}
}

// UpsertProfile handles POST /api/roommates/profile
func (h *RoommateHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var input entities.RoommateProfileInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	profile, err := h.service.UpsertProfile(r.Context(), principal.ID, input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Profile created/updated successfully",
		"profile": profile,
	})
}

// GetMyProfile handles GET /api/roommates/profile
func (h *RoommateHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.writeProfile(w, r, principal.ID)
}

// GetProfile handles GET /api/roommates/profile/{userId}
func (h *RoommateHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "user ID is required")
		return
	}
	h.writeProfile(w, r, userID)
}

func (h *RoommateHandler) writeProfile(w http.ResponseWriter, r *http.Request, userID string) {
	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"profile": profile,
	})
}

// ListProfiles handles GET /api/roommates/all
func (h *RoommateHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.ListProfiles(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"count":    len(profiles),
		"profiles": profiles,
	})
}

// Matches handles GET /api/roommates/matches
func (h *RoommateHandler) Matches(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	matches, err := h.service.Matches(r.Context(), principal.ID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(matches),
		"matches": matches,
	})
}

// DeleteProfile handles DELETE /api/roommates/profile
func (h *RoommateHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.service.DeleteProfile(r.Context(), principal.ID); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Profile deleted successfully",
	})
}
