package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wordrecords/internal/assignment"
	"wordrecords/internal/config"
	"wordrecords/internal/events"
	"wordrecords/internal/identity"
	"wordrecords/internal/models"
	"wordrecords/internal/points"
	"wordrecords/internal/records"
	"wordrecords/internal/storage"
	"wordrecords/internal/transport"
)

// lessonScript describes a scripted play-through fed to the telemetry client
type lessonScript struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	PageURL  string   `yaml:"page_url"`
	Lessons  []lesson `yaml:"lessons"`
}

type lesson struct {
	Mode     string            `yaml:"mode"`
	ListName string            `yaml:"list_name"`
	Words    []string          `yaml:"words"`
	Meta     map[string]any    `yaml:"meta"`
	Attempts []scriptedAttempt `yaml:"attempts"`
	Summary  map[string]any    `yaml:"summary"`
}

type scriptedAttempt struct {
	Word    string        `yaml:"word"`
	Correct bool          `yaml:"correct"`
	Answer  string        `yaml:"answer"`
	Points  *int          `yaml:"points"`
	Round   *int          `yaml:"round"`
	Delay   time.Duration `yaml:"delay"`
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <script.yaml>",
	Short: "Play a YAML lesson script through the telemetry client against a collector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := loadScript(args[0])
		if err != nil {
			return err
		}

		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}
		if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
			cfg.BaseURL = strings.TrimRight(baseURL, "/")
		}
		if user, _ := cmd.Flags().GetString("username"); user != "" {
			script.Username = user
		}
		if pass, _ := cmd.Flags().GetString("password"); pass != "" {
			script.Password = pass
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		_, err = runSimulation(ctx, cfg, script, newLogger(cmd), cmd.OutOrStdout())
		return err
	},
}

func init() {
	simulateCmd.Flags().String("base-url", "", "Collector base URL (overrides RECORDS_BASE_URL)")
	simulateCmd.Flags().String("username", "", "Student username (overrides the script)")
	simulateCmd.Flags().String("password", "", "Student password (overrides the script)")
	simulateCmd.Flags().Duration("timeout", 2*time.Minute, "Give up after this long")
}

func loadScript(path string) (*lessonScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return parseScript(data)
}

func parseScript(data []byte) (*lessonScript, error) {
	var script lessonScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(script.Lessons) == 0 {
		return nil, fmt.Errorf("script has no lessons")
	}
	for i, l := range script.Lessons {
		if len(l.Attempts) == 0 {
			return nil, fmt.Errorf("lesson %d has no attempts", i+1)
		}
	}
	return &script, nil
}

// runSimulation signs in, plays every lesson and returns the server's points total
func runSimulation(ctx context.Context, cfg config.ClientConfig, script *lessonScript, logger *slog.Logger, out io.Writer) (int, error) {
	tr, err := transport.New(cfg, transport.WithLogger(logger))
	if err != nil {
		return 0, err
	}
	if script.Username != "" {
		if err := tr.Login(ctx, script.Username, script.Password); err != nil {
			return 0, fmt.Errorf("login failed: %w", err)
		}
	}

	bus := events.NewBus()
	unsubscribe := bus.Subscribe(events.PointsUpdate, func(e events.Event) {
		if d, ok := e.Detail.(events.PointsDetail); ok {
			logger.Debug("points updated", "total", d.Total)
		}
	})
	defer unsubscribe()

	store := storage.NewMemoryStore()
	resolver := identity.NewResolver(tr, bus, logger)
	pts := points.New(tr, bus, cfg.PointsThrottle, logger)
	defer pts.Stop()

	client := records.New(cfg, tr, resolver,
		records.WithPoints(pts),
		records.WithAssignments(assignment.New(script.PageURL, store, nil)),
		records.WithBus(bus),
		records.WithStore(store),
		records.WithLogger(logger),
	)

	if userID := resolver.EnsureUserID(ctx); userID != "" {
		fmt.Fprintf(out, "Signed in as %s\n", userID)
	} else {
		fmt.Fprintln(out, "Playing as guest; nothing will be stored")
	}

	for _, l := range script.Lessons {
		if err := playLesson(ctx, client, l, out); err != nil {
			client.Close(context.Background())
			return 0, err
		}
	}

	if err := client.FlushAttempts(ctx); err != nil {
		return 0, err
	}
	if err := client.Close(ctx); err != nil {
		return 0, err
	}

	pts.RefreshFromServerOnce(ctx)
	total, ok := pts.Total()
	if ok {
		fmt.Fprintf(out, "Points total: %d\n", total)
	}
	return total, nil
}

func playLesson(ctx context.Context, client *records.Client, l lesson, out io.Writer) error {
	id := client.StartSession(records.StartOptions{
		Mode:     l.Mode,
		WordList: l.Words,
		ListName: l.ListName,
		Meta:     l.Meta,
	})

	correct := 0
	for i, a := range l.Attempts {
		if a.Delay > 0 {
			select {
			case <-time.After(a.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if a.Correct {
			correct++
		}
		answer := a.Answer
		if answer == "" && a.Correct {
			answer = a.Word
		}
		client.LogAttempt(models.Attempt{
			SessionID:     id,
			Mode:          l.Mode,
			Word:          a.Word,
			IsCorrect:     a.Correct,
			Answer:        answer,
			CorrectAnswer: a.Word,
			Points:        a.Points,
			AttemptIndex:  &i,
			Round:         a.Round,
		})
	}

	summary := map[string]any{
		"correct": correct,
		"total":   len(l.Attempts),
	}
	for k, v := range l.Summary {
		summary[k] = v
	}
	client.EndSession(id, records.EndOptions{
		Mode:     l.Mode,
		Summary:  summary,
		ListName: l.ListName,
		WordList: l.Words,
	})

	fmt.Fprintf(out, "%s %s: %d/%d correct\n", l.Mode, id, correct, len(l.Attempts))
	return nil
}
