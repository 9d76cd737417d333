package handlers

const (
	ErrInvalidJSON         = "Invalid JSON"
	ErrNotSignedIn         = "Not signed in. Please log in."
	ErrInvalidCredentials  = "Invalid username or password"
	ErrInternalServerError = "Internal server error"
	ErrSessionConflict     = "Session belongs to another student"

	maxBodyBytes = 1 << 20
)
