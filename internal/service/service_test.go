package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"wordrecords/internal/database"
	"wordrecords/internal/models"
	"wordrecords/internal/repository"
	"wordrecords/internal/security"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations("../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func intp(n int) *int { return &n }

func TestHandleEventValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(db)

	tests := []struct {
		name    string
		userID  string
		event   models.Event
		wantErr error
	}{
		{
			name:    "missing event type",
			userID:  "student-1",
			event:   models.Event{SessionID: "s1"},
			wantErr: ErrMissingEventType,
		},
		{
			name:    "unknown event type",
			userID:  "student-1",
			event:   models.Event{Type: "bogus", SessionID: "s1"},
			wantErr: ErrUnknownEventType,
		},
		{
			name:    "not signed in",
			event:   models.Event{Type: models.EventSessionStart, SessionID: "s1"},
			wantErr: ErrNotSignedIn,
		},
		{
			name:    "start without session",
			userID:  "student-1",
			event:   models.Event{Type: models.EventSessionStart},
			wantErr: ErrMissingSessionID,
		},
		{
			name:    "end without session",
			userID:  "student-1",
			event:   models.Event{Type: models.EventSessionEnd},
			wantErr: ErrMissingSessionID,
		},
		{
			name:    "attempt without word",
			userID:  "student-1",
			event:   models.Event{Type: models.EventAttempt, SessionID: "s1", Attempt: &models.Attempt{IsCorrect: true}},
			wantErr: ErrMissingWord,
		},
		{
			name:   "batch with only blank words",
			userID: "student-1",
			event: models.Event{Type: models.EventAttemptsBatch, SessionID: "s1", Attempts: []models.Attempt{
				{Word: ""}, {Word: "  "},
			}},
			wantErr: ErrEmptyBatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.HandleEvent(tt.userID, tt.event)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HandleEvent() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != ErrNotSignedIn && !IsBadRequest(err) {
				t.Errorf("IsBadRequest(%v) = false", err)
			}
		})
	}
}

func TestHandleEventSessionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(db)
	user := "student-1"

	start := models.Event{
		Type:      models.EventSessionStart,
		SessionID: "session-a",
		Mode:      "spelling",
		ListName:  "week1.json",
		ListSize:  intp(3),
		Extra:     map[string]any{models.ExtraAssignmentRun: "run-1"},
	}
	if _, err := svc.HandleEvent(user, start); err != nil {
		t.Fatalf("session_start: %v", err)
	}

	batch := models.Event{
		Type:      models.EventAttemptsBatch,
		SessionID: "session-a",
		Mode:      "spelling",
		Attempts: []models.Attempt{
			{Word: "cat", IsCorrect: true},
			{Word: "", IsCorrect: true},
			{Word: "dog", IsCorrect: false},
			{Word: "fish", IsCorrect: true, Points: intp(3)},
		},
	}
	res, err := svc.HandleEvent(user, batch)
	if err != nil {
		t.Fatalf("attempts_batch: %v", err)
	}
	if res.Inserted != 3 {
		t.Errorf("Inserted = %d, want 3", res.Inserted)
	}
	if res.PointsTotal == nil || *res.PointsTotal != 4 {
		t.Errorf("PointsTotal = %v, want 4", res.PointsTotal)
	}

	single := models.Event{
		Type:      models.EventAttempt,
		SessionID: "session-a",
		Mode:      "spelling",
		Attempt:   &models.Attempt{Word: "owl", IsCorrect: true},
	}
	res, err = svc.HandleEvent(user, single)
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if res.Inserted != 1 || res.PointsTotal == nil || *res.PointsTotal != 5 {
		t.Errorf("single attempt result = %+v", res)
	}

	end := models.Event{
		Type:      models.EventSessionEnd,
		SessionID: "session-a",
		Mode:      "spelling",
		Extra:     map[string]any{"correct": 3.0},
	}
	if _, err := svc.HandleEvent(user, end); err != nil {
		t.Fatalf("session_end: %v", err)
	}

	rec, err := svc.Session("session-a")
	if err != nil || rec == nil {
		t.Fatalf("Session() = %v, %v", rec, err)
	}
	if !rec.IsEnded() {
		t.Error("session should be ended")
	}
	if rec.AssignmentRun != "run-1" || rec.ListName != "week1.json" {
		t.Errorf("session columns not kept: %+v", rec)
	}
	if rec.Summary["correct"] != 3.0 {
		t.Errorf("summary = %v", rec.Summary)
	}

	attempts, err := svc.Attempts("session-a")
	if err != nil {
		t.Fatalf("Attempts() error = %v", err)
	}
	if len(attempts) != 4 {
		t.Fatalf("len(attempts) = %d, want 4", len(attempts))
	}
	if attempts[0].Attempt.Mode != "spelling" || attempts[0].Points != 1 {
		t.Errorf("first attempt = %+v", attempts[0])
	}

	pc, err := svc.PointsCount(user)
	if err != nil {
		t.Fatalf("PointsCount() error = %v", err)
	}
	if pc.Correct != 3 || pc.Points != 5 {
		t.Errorf("PointsCount() = %+v, want {3 5}", pc)
	}

	ov, err := svc.Overview(user)
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if ov.Sessions != 1 || ov.Attempts != 4 || ov.Accuracy != 0.75 {
		t.Errorf("Overview() = %+v", ov)
	}
}

func TestAttemptsCreateSessionRow(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(db)

	ev := models.Event{
		Type:      models.EventAttemptsBatch,
		SessionID: "session-late",
		Attempts:  []models.Attempt{{Word: "sun", IsCorrect: true}},
	}
	if _, err := svc.HandleEvent("student-2", ev); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	rec, err := svc.Session("session-late")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if rec == nil || rec.UserID != "student-2" || rec.Mode != models.UnknownMode {
		t.Errorf("session row = %+v", rec)
	}
}

func newAuth(t *testing.T, db *database.DB) (*AuthService, *StudentService) {
	t.Helper()
	students := repository.NewStudentRepository(db)
	issuer := security.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour, 24*time.Hour)
	return NewAuthService(students, issuer), NewStudentService(students)
}

func TestLoginAndAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	auth, students := newAuth(t, db)

	student, creds, err := students.AddStudent("Mia", "3B")
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}
	if student.Username != creds.Username {
		t.Errorf("username = %q, want %q", student.Username, creds.Username)
	}

	if _, _, _, err := auth.Login(creds.Username, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) error = %v", err)
	}
	if _, _, _, err := auth.Login("nobody-here", creds.Password); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(unknown user) error = %v", err)
	}

	got, access, refresh, err := auth.Login(creds.Username, creds.Password)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got.ID != student.ID {
		t.Errorf("Login() student = %q, want %q", got.ID, student.ID)
	}

	id, err := auth.Authenticate(access.Value)
	if err != nil || id != student.ID {
		t.Errorf("Authenticate() = %q, %v", id, err)
	}
	if _, err := auth.Authenticate(refresh.Value); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("Authenticate(refresh token) error = %v", err)
	}
	if _, err := auth.Authenticate(""); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("Authenticate(\"\") error = %v", err)
	}

	renewed, err := auth.Refresh(refresh.Value)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if id, err := auth.Authenticate(renewed.Value); err != nil || id != student.ID {
		t.Errorf("Authenticate(renewed) = %q, %v", id, err)
	}
	if _, err := auth.Refresh(access.Value); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("Refresh(access token) error = %v", err)
	}
}

func TestAddStudentRequiresName(t *testing.T) {
	db := setupTestDB(t)
	_, students := newAuth(t, db)
	if _, _, err := students.AddStudent("  ", "3B"); err == nil {
		t.Error("expected error for blank display name")
	}
}

func TestRunTokens(t *testing.T) {
	db := setupTestDB(t)
	_, students := newAuth(t, db)
	assignments := NewAssignmentService(repository.NewAssignmentRepository(db), repository.NewStudentRepository(db))

	inClass, _, err := students.AddStudent("Leo", "3B")
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}
	noClass, _, err := students.AddStudent("Ava", "")
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}

	first, err := assignments.CreateAssignment("3B", "week1.json")
	if err != nil {
		t.Fatalf("CreateAssignment() error = %v", err)
	}
	second, err := assignments.CreateAssignment("3B", "week1.json")
	if err != nil {
		t.Fatalf("CreateAssignment() error = %v", err)
	}
	if _, err := assignments.CreateAssignment("4A", "week1.json"); err != nil {
		t.Fatalf("CreateAssignment() error = %v", err)
	}

	tokens, err := assignments.RunTokens(inClass.ID, "week1.json")
	if err != nil {
		t.Fatalf("RunTokens() error = %v", err)
	}
	if len(tokens) != 2 || tokens[0] != first.RunToken || tokens[1] != second.RunToken {
		t.Errorf("RunTokens() = %v", tokens)
	}

	if ok, err := assignments.Deactivate(first.RunToken); err != nil || !ok {
		t.Fatalf("Deactivate() = %v, %v", ok, err)
	}
	tokens, _ = assignments.RunTokens(inClass.ID, "week1.json")
	if len(tokens) != 1 || tokens[0] != second.RunToken {
		t.Errorf("RunTokens() after deactivate = %v", tokens)
	}

	tokens, err = assignments.RunTokens(noClass.ID, "week1.json")
	if err != nil || len(tokens) != 0 {
		t.Errorf("RunTokens(no class) = %v, %v", tokens, err)
	}
	if _, err := assignments.RunTokens("", "week1.json"); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("RunTokens(guest) error = %v", err)
	}
	if _, err := assignments.RunTokens("missing", "week1.json"); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("RunTokens(unknown student) error = %v", err)
	}
	if _, err := assignments.CreateAssignment("", "week1.json"); err == nil {
		t.Error("CreateAssignment() without class should fail")
	}
}

func TestHandleEventRejectsAnotherStudentsSession(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(db)

	start := models.Event{Type: models.EventSessionStart, SessionID: "s-own", Mode: "quiz", ListName: "Animals 1"}
	if _, err := svc.HandleEvent("student-1", start); err != nil {
		t.Fatalf("HandleEvent(start) error = %v", err)
	}

	tests := []struct {
		name  string
		event models.Event
	}{
		{
			name:  "start",
			event: models.Event{Type: models.EventSessionStart, SessionID: "s-own", Mode: "hangman"},
		},
		{
			name:  "end",
			event: models.Event{Type: models.EventSessionEnd, SessionID: "s-own", Mode: "quiz", Extra: map[string]any{"score": 0}},
		},
		{
			name: "batch",
			event: models.Event{Type: models.EventAttemptsBatch, SessionID: "s-own", Mode: "quiz", Attempts: []models.Attempt{
				{Word: "cat", IsCorrect: true},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.HandleEvent("student-2", tt.event)
			if !errors.Is(err, ErrSessionNotOwned) {
				t.Errorf("HandleEvent() error = %v, want ErrSessionNotOwned", err)
			}
		})
	}

	rec, err := svc.Session("s-own")
	if err != nil || rec == nil {
		t.Fatalf("Session() = %v, %v", rec, err)
	}
	if rec.UserID != "student-1" || rec.Mode != "quiz" || rec.IsEnded() {
		t.Errorf("session changed by another student: %+v", rec)
	}
	attempts, err := svc.Attempts("s-own")
	if err != nil {
		t.Fatalf("Attempts() error = %v", err)
	}
	if len(attempts) != 0 {
		t.Errorf("expected no attempts stored, got %d", len(attempts))
	}
}
