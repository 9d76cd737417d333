package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"wordrecords/internal/security"
	"wordrecords/internal/service"
)

// AuthHandler handles student sign-in for the game pages
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks credentials and sets the access and refresh cookies
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Username and password are required", "", nil)
		return
	}

	student, access, refresh, err := h.authService.Login(req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		respondWithError(w, http.StatusUnauthorized, ErrInvalidCredentials, "", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error logging in", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, security.AccessCookieName, access.Value, access.Expires))
	http.SetCookie(w, security.CreateSessionCookie(r, security.RefreshCookieName, refresh.Value, refresh.Expires))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           true,
		"user_id":      student.ID,
		"display_name": student.DisplayName,
	})
}

// WhoAmI reports the signed-in student id
func (h *AuthHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		respondWithError(w, http.StatusUnauthorized, ErrNotSignedIn, "", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

// Refresh renews the access cookie from the refresh cookie
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(security.RefreshCookieName)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrNotSignedIn, "", nil)
		return
	}

	access, err := h.authService.Refresh(cookie.Value)
	if errors.Is(err, service.ErrNotSignedIn) {
		http.SetCookie(w, security.CreateDeleteCookie(r, security.RefreshCookieName))
		respondWithError(w, http.StatusUnauthorized, ErrNotSignedIn, "", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error refreshing session", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, security.AccessCookieName, access.Value, access.Expires))
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Logout clears both auth cookies
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, security.CreateDeleteCookie(r, security.AccessCookieName))
	http.SetCookie(w, security.CreateDeleteCookie(r, security.RefreshCookieName))
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
