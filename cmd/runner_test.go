package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/songsort/internal/models"
	"github.com/desertthunder/songsort/internal/services"
	"github.com/desertthunder/songsort/internal/shared"
	"github.com/desertthunder/songsort/internal/tasks"
	th "github.com/desertthunder/songsort/internal/testing"
)

// testConfig points every file at dir and disables pacing.
func testConfig(dir string) *shared.Config {
	config := shared.DefaultConfig()
	config.Files.LikedSongs = filepath.Join(dir, "spotify_liked_songs.json")
	config.Files.Categories = filepath.Join(dir, "song_categories.json")
	config.Files.Summary = filepath.Join(dir, "categorization_summary.json")
	config.Database.Path = filepath.Join(dir, "songsort.db")
	config.Fetcher.RequestsPerSecond = -1
	config.Classifier.RequestsPerSecond = -1
	config.Fetcher.RetryDelayMS = 1
	config.Classifier.RetryDelayMS = 1
	return config
}

type testEnv struct {
	dir    string
	config *shared.Config
	output *bytes.Buffer
	tokens *th.FakeTokenProvider
	lister *th.FakeLister
	llm    *th.FakeCompleter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	library := th.Tracks("A", "B", "C")
	return &testEnv{
		dir:    dir,
		config: testConfig(dir),
		output: &bytes.Buffer{},
		tokens: &th.FakeTokenProvider{Token: "tok"},
		lister: &th.FakeLister{Library: library},
		llm: &th.FakeCompleter{Respond: func(int, services.CompletionRequest) (string, error) {
			return th.SongsReply(library, "Rock"), nil
		}},
	}
}

func (e *testEnv) exec(t *testing.T, args ...string) error {
	t.Helper()
	e.output.Reset()
	runner := NewRunner(RunnerOpts{
		Config: e.config,
		Logger: shared.NewLogger(io.Discard),
		Output: e.output,
		Tokens: e.tokens,
		Lister: e.lister,
		LLM:    e.llm,
	})
	argv := append([]string{"songsort", "--config", filepath.Join(e.dir, "config.toml")}, args...)
	return newApp(runner).Run(context.Background(), argv)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			tokens := &th.FakeTokenProvider{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				Tokens:     tokens,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.tokens != tokens {
				t.Error("expected token provider to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			if runner := NewRunner(RunnerOpts{}); runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			if runner := NewRunner(RunnerOpts{}); runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing file uses defaults", func(t *testing.T) {
			config, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if config.Classifier.BatchSize != 20 {
				t.Errorf("expected default batch size, got %d", config.Classifier.BatchSize)
			}
		})

		t.Run("reads file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			th.MustWriteFile(t, path, "[classifier]\nbatch_size = 7\n")

			config, err := loadConfig(path)
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if config.Classifier.BatchSize != 7 {
				t.Errorf("BatchSize = %d, want 7", config.Classifier.BatchSize)
			}
		})
	})

	t.Run("tokenProvider", func(t *testing.T) {
		t.Run("not authenticated", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})

			if _, err := runner.tokenProvider(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("bare access token", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.AccessToken = "bare"
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})

			tokens, err := runner.tokenProvider(context.Background())
			if err != nil {
				t.Fatalf("tokenProvider() error = %v", err)
			}
			token, err := tokens.AccessToken(context.Background())
			if err != nil || token != "bare" {
				t.Errorf("AccessToken() = %q, %v", token, err)
			}
		})

		t.Run("refreshable token", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = "id"
			config.Credentials.Spotify.ClientSecret = "secret"
			config.Credentials.Spotify.AccessToken = "access"
			config.Credentials.Spotify.RefreshToken = "refresh"
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})

			tokens, err := runner.tokenProvider(context.Background())
			if err != nil {
				t.Fatalf("tokenProvider() error = %v", err)
			}
			if _, ok := tokens.(*services.OAuthTokenProvider); !ok {
				t.Errorf("expected OAuthTokenProvider, got %T", tokens)
			}
		})
	})
}

func TestCommands(t *testing.T) {
	t.Run("run", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.exec(t, "run", "--format", "json"); err != nil {
			t.Fatalf("run error = %v", err)
		}

		var report models.Report
		if err := json.Unmarshal(env.output.Bytes(), &report); err != nil {
			t.Fatalf("invalid report JSON: %v\n%s", err, env.output.String())
		}
		if report.Classified != 3 || report.Unclassified != 0 || report.Status() != "ok" {
			t.Errorf("unexpected report %+v", report)
		}

		th.AssertFileExists(t, env.config.Files.LikedSongs)
		th.AssertFileExists(t, env.config.Files.Categories)
		th.AssertFileExists(t, env.config.Files.Summary)
	})

	t.Run("run with overrides", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.exec(t, "run", "--model", "gpt-test", "--batch-size", "1", "--no-history"); err != nil {
			t.Fatalf("run error = %v", err)
		}
		if env.llm.Calls() != 3 {
			t.Errorf("expected one request per song, got %d", env.llm.Calls())
		}
		if env.llm.Requests[0].Model != "gpt-test" {
			t.Errorf("model = %q, want gpt-test", env.llm.Requests[0].Model)
		}
		th.AssertFileMissing(t, env.config.Database.Path)
	})

	t.Run("run fails on auth", func(t *testing.T) {
		env := newTestEnv(t)
		env.tokens.Err = shared.ErrAuthFailed

		err := env.exec(t, "run")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
		if !strings.Contains(env.output.String(), "failed") {
			t.Errorf("expected the failed report to be printed, got %q", env.output.String())
		}
		th.AssertFileMissing(t, env.config.Files.LikedSongs)
	})

	t.Run("run rejects unknown format", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.exec(t, "run", "--format", "xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
		if env.llm.Calls() != 0 {
			t.Error("no requests should be made")
		}
	})

	t.Run("status and summary", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.exec(t, "run"); err != nil {
			t.Fatalf("run error = %v", err)
		}

		if err := env.exec(t, "status", "--format", "json"); err != nil {
			t.Fatalf("status error = %v", err)
		}
		var snap tasks.Snapshot
		if err := json.Unmarshal(env.output.Bytes(), &snap); err != nil {
			t.Fatalf("invalid snapshot JSON: %v", err)
		}
		if snap.Songs != 3 || snap.Classified != 3 || snap.Labels != 1 {
			t.Errorf("unexpected snapshot %+v", snap)
		}

		if err := env.exec(t, "summary", "--format", "markdown"); err != nil {
			t.Fatalf("summary error = %v", err)
		}
		if !strings.Contains(env.output.String(), "| Rock | 3 |") {
			t.Errorf("unexpected summary:\n%s", env.output.String())
		}
	})

	t.Run("history", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.exec(t, "run"); err != nil {
			t.Fatalf("run error = %v", err)
		}

		if err := env.exec(t, "history", "--format", "json"); err != nil {
			t.Fatalf("history error = %v", err)
		}
		var reports []models.Report
		if err := json.Unmarshal(env.output.Bytes(), &reports); err != nil {
			t.Fatalf("invalid history JSON: %v", err)
		}
		if len(reports) != 1 {
			t.Fatalf("expected 1 recorded run, got %d", len(reports))
		}

		if err := env.exec(t, "history", "show", "--format", "json", reports[0].RunID); err != nil {
			t.Fatalf("history show error = %v", err)
		}
		if !strings.Contains(env.output.String(), reports[0].RunID) {
			t.Errorf("expected run %s in output", reports[0].RunID)
		}
	})

	t.Run("history disabled", func(t *testing.T) {
		env := newTestEnv(t)
		env.config.Database.Path = ""

		if err := env.exec(t, "history"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("setup", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.exec(t, "setup"); err != nil {
			t.Fatalf("setup error = %v", err)
		}
		th.AssertFileExists(t, filepath.Join(env.dir, "config.toml"))
		if !strings.Contains(env.output.String(), "Created") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
	})

	t.Run("auth status", func(t *testing.T) {
		env := newTestEnv(t)
		env.config.Credentials.Spotify.AccessToken = ""
		env.config.Credentials.Spotify.RefreshToken = ""

		if err := env.exec(t, "auth", "status"); err != nil {
			t.Fatalf("auth status error = %v", err)
		}
		if !strings.Contains(env.output.String(), "songsort auth spotify") {
			t.Errorf("expected a hint to authenticate:\n%s", env.output.String())
		}
	})

	t.Run("auth spotify requires client credentials", func(t *testing.T) {
		env := newTestEnv(t)
		env.config.Credentials.Spotify.ClientID = ""

		if err := env.exec(t, "auth", "spotify"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}
