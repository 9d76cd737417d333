package handlers

import (
	"net/http"

	"wordrecords/internal/service"
)

// ProgressHandler serves points totals and progress summaries
type ProgressHandler struct {
	activityService *service.ActivityService
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(activityService *service.ActivityService) *ProgressHandler {
	return &ProgressHandler{activityService: activityService}
}

// Count returns the number of correct attempts and total points
func (h *ProgressHandler) Count(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		respondWithError(w, http.StatusUnauthorized, ErrNotSignedIn, "", nil)
		return
	}

	pc, err := h.activityService.PointsCount(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error counting points", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"correct": pc.Correct,
		"points":  pc.Points,
	})
}

// Overview returns the progress summary
func (h *ProgressHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		respondWithError(w, http.StatusUnauthorized, ErrNotSignedIn, "", nil)
		return
	}

	ov, err := h.activityService.Overview(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error building overview", err)
		return
	}
	respondJSON(w, http.StatusOK, ov)
}
