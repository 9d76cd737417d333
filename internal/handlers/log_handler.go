package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"wordrecords/internal/models"
	"wordrecords/internal/service"
)

// LogHandler receives session and attempt events from the game client
type LogHandler struct {
	activityService *service.ActivityService
}

// NewLogHandler creates a new log handler
func NewLogHandler(activityService *service.ActivityService) *LogHandler {
	return &LogHandler{activityService: activityService}
}

// Health answers GET on the logging endpoint
func (h *LogHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"note": "log_word_attempt online",
	})
}

// LogEvent stores one session_start, session_end, attempt or attempts_batch event
func (h *LogHandler) LogEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	userID := GetUserIDFromContext(r.Context())
	result, err := h.activityService.HandleEvent(userID, ev)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNotSignedIn):
		respondWithError(w, http.StatusUnauthorized, ErrNotSignedIn, "", nil)
		return
	case service.IsBadRequest(err):
		respondWithError(w, http.StatusBadRequest, err.Error(), "", nil)
		return
	case errors.Is(err, service.ErrSessionNotOwned):
		respondWithError(w, http.StatusConflict, ErrSessionConflict, "Rejected "+string(ev.Type)+" for "+ev.SessionID, err)
		return
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error logging "+string(ev.Type), err)
		return
	}

	respondJSON(w, http.StatusOK, models.LogResponse{
		OK:          true,
		Inserted:    result.Inserted,
		PointsTotal: result.PointsTotal,
	})
}
