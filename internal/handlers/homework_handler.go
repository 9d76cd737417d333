package handlers

import (
	"errors"
	"net/http"

	"wordrecords/internal/service"
)

// HomeworkHandler answers assignment run token lookups
type HomeworkHandler struct {
	assignmentService *service.AssignmentService
}

// NewHomeworkHandler creates a new homework handler
func NewHomeworkHandler(assignmentService *service.AssignmentService) *HomeworkHandler {
	return &HomeworkHandler{assignmentService: assignmentService}
}

// RunToken lists active run tokens for the student's class and the list_name query parameter, oldest first
func (h *HomeworkHandler) RunToken(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	tokens, err := h.assignmentService.RunTokens(userID, r.URL.Query().Get("list_name"))
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNotSignedIn), errors.Is(err, service.ErrStudentNotFound):
		respondWithError(w, http.StatusUnauthorized, ErrNotSignedIn, "", nil)
		return
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error looking up run tokens", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"tokens":  tokens,
	})
}
