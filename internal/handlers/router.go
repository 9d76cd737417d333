package handlers

import (
	"net/http"

	"wordrecords/internal/database"
	"wordrecords/internal/repository"
	"wordrecords/internal/security"
	"wordrecords/internal/service"
)

// RouterConfig carries what NewRouter needs beyond the database
type RouterConfig struct {
	Tokens         *security.TokenIssuer
	Limiter        *security.RateLimiter
	AllowedOrigins []string
}

// NewRouter wires repositories, services and handlers into the collector's HTTP handler
func NewRouter(db *database.DB, cfg RouterConfig) http.Handler {
	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	authService := service.NewAuthService(studentRepo, cfg.Tokens)
	activityService := service.NewActivityService(db)
	assignmentService := service.NewAssignmentService(assignmentRepo, studentRepo)

	middleware := NewMiddleware(authService, cfg.Limiter)
	logHandler := NewLogHandler(activityService)
	authHandler := NewAuthHandler(authService)
	progressHandler := NewProgressHandler(activityService)
	homeworkHandler := NewHomeworkHandler(assignmentService)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/log_word_attempt", logHandler.Health)
	mux.HandleFunc("POST /api/log_word_attempt", middleware.WithUser(logHandler.LogEvent))

	mux.HandleFunc("POST /api/auth/login", middleware.RateLimit(authHandler.Login))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/whoami", middleware.WithUser(authHandler.WhoAmI))
	mux.HandleFunc("GET /api/auth/refresh", authHandler.Refresh)

	mux.HandleFunc("GET /api/points/count", middleware.WithUser(progressHandler.Count))
	mux.HandleFunc("GET /api/progress/overview", middleware.WithUser(progressHandler.Overview))
	mux.HandleFunc("GET /api/homework/run_token", middleware.WithUser(homeworkHandler.RunToken))

	return Logging(CORS(cfg.AllowedOrigins)(mux))
}
