package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordrecords/internal/config"
	"wordrecords/internal/database"
	"wordrecords/internal/handlers"
	"wordrecords/internal/repository"
	"wordrecords/internal/security"
	"wordrecords/internal/service"
)

const sampleScript = `
username: %s
password: %s
page_url: https://games.example/spelling.html?run_token=%s
lessons:
  - mode: spelling
    list_name: week1.json
    words: [cat, dog, sun]
    meta:
      difficulty: easy
    attempts:
      - word: cat
        correct: true
      - word: dog
        correct: false
        answer: dgo
        delay: 5ms
      - word: sun
        correct: true
        points: 3
  - mode: listening
    list_name: week1.json
    words: [owl]
    attempts:
      - word: owl
        correct: true
    summary:
      stars: 1
`

func TestParseScript(t *testing.T) {
	script, err := parseScript([]byte(fmt.Sprintf(sampleScript, "happy-tiger", "Ab3z", "run-1")))
	require.NoError(t, err)

	require.Len(t, script.Lessons, 2)
	assert.Equal(t, "happy-tiger", script.Username)
	assert.Equal(t, []string{"cat", "dog", "sun"}, script.Lessons[0].Words)
	assert.Equal(t, 5*time.Millisecond, script.Lessons[0].Attempts[1].Delay)
	require.NotNil(t, script.Lessons[0].Attempts[2].Points)
	assert.Equal(t, 3, *script.Lessons[0].Attempts[2].Points)
	assert.Equal(t, "easy", script.Lessons[0].Meta["difficulty"])

	_, err = parseScript([]byte("lessons: []"))
	assert.Error(t, err)
	_, err = parseScript([]byte("lessons:\n  - mode: spelling\n"))
	assert.Error(t, err)
	_, err = parseScript([]byte("lessons: [unterminated"))
	assert.Error(t, err)
}

func TestRunSimulationAgainstCollector(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations("../../migrations"))

	student, creds, err := service.NewStudentService(repository.NewStudentRepository(db)).AddStudent("Mia", "3B")
	require.NoError(t, err)

	srv := httptest.NewServer(handlers.NewRouter(db, handlers.RouterConfig{
		Tokens:  security.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour, 24*time.Hour),
		Limiter: security.NewRateLimiter(10, time.Minute),
	}))
	t.Cleanup(srv.Close)

	script, err := parseScript([]byte(fmt.Sprintf(sampleScript, creds.Username, creds.Password, "run-1")))
	require.NoError(t, err)

	cfg := config.DefaultClientConfig()
	cfg.BaseURL = srv.URL
	cfg.BatchSize = 2
	cfg.RetryBaseDelay = 20 * time.Millisecond
	cfg.RetryMaxDelay = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	total, err := runSimulation(ctx, cfg, script, logger, &out)
	require.NoError(t, err)

	assert.Equal(t, 5, total)
	assert.Contains(t, out.String(), "Signed in as "+student.ID)
	assert.Contains(t, out.String(), "2/3 correct")
	assert.Contains(t, out.String(), "Points total: 5")

	activity := repository.NewActivityRepository(db)
	pc, err := activity.PointsCount(student.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, pc.Correct)
	assert.Equal(t, 5, pc.Points)

	ov, err := activity.Overview(student.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, ov.Sessions)
	assert.Equal(t, 4, ov.Attempts)

	var ids []string
	for _, line := range strings.Split(out.String(), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.HasPrefix(fields[1], "session-") {
			ids = append(ids, strings.TrimSuffix(fields[1], ":"))
		}
	}
	require.Len(t, ids, 2)

	first, err := activity.GetSession(ids[0])
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.IsEnded())
	assert.Equal(t, "spelling", first.Mode)
	assert.Equal(t, "run-1", first.AssignmentRun)
	require.NotNil(t, first.ListSize)
	assert.Equal(t, 3, *first.ListSize)
	assert.EqualValues(t, 2, first.Summary["correct"])

	attempts, err := activity.ListAttempts(ids[0])
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, "dgo", attempts[1].Attempt.Answer)
	assert.Equal(t, "run-1", attempts[0].Attempt.Extra["assignment_run"])

	second, err := activity.GetSession(ids[1])
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.EqualValues(t, 1, second.Summary["stars"])
}
