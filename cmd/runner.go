package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songsort/internal/classifier"
	"github.com/desertthunder/songsort/internal/formatter"
	"github.com/desertthunder/songsort/internal/repositories"
	"github.com/desertthunder/songsort/internal/services"
	"github.com/desertthunder/songsort/internal/shared"
	"github.com/desertthunder/songsort/internal/store"
	"github.com/desertthunder/songsort/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer

	// Provider overrides; nil means build from config.
	tokens services.TokenProvider
	lister services.LikedLister
	llm    services.Completer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Tokens     services.TokenProvider
	Lister     services.LikedLister
	LLM        services.Completer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		tokens:     opts.Tokens,
		lister:     opts.Lister,
		llm:        opts.LLM,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, authCommand, statusCommand, summaryCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the config named by --config, applies environment overrides, and sets the log level.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath == "" {
		r.configPath = defaultConfigPath
	}

	if r.config == nil {
		config, err := loadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	}
	r.config.ApplyEnv(nil)

	level := r.config.Log.Level
	if cmd.Bool("verbose") {
		level = "debug"
	}
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	return ctx, nil
}

// loadConfig reads path, or returns the defaults when it does not exist.
func loadConfig(path string) (*shared.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return shared.DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	return shared.LoadConfig(path)
}

func (r *Runner) songStore() *store.SongStore {
	return store.NewSongStore(r.config.Files.LikedSongs, r.logger)
}

func (r *Runner) categoryStore() *store.CategoryStore {
	return store.NewCategoryStore(r.config.Files.Categories, r.logger, store.CategoryOptions{Backup: r.config.Files.Backup})
}

// tokenProvider builds Spotify bearer tokens from the saved OAuth token, refreshing and
// persisting it as needed. A bare access token without client credentials is used as is.
func (r *Runner) tokenProvider(ctx context.Context) (services.TokenProvider, error) {
	if r.tokens != nil {
		return r.tokens, nil
	}

	spotify := r.config.Credentials.Spotify
	token := spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run `songsort auth spotify` or set SPOTIFY_ACCESS_TOKEN", shared.ErrNotAuthenticated)
	}

	if token.RefreshToken == "" || spotify.ClientID == "" || spotify.ClientSecret == "" {
		return &services.StaticTokenProvider{Token: token.AccessToken}, nil
	}

	svc, err := services.NewSpotifyService(spotify.Map())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMissingCredentials, err)
	}
	return services.NewOAuthTokenProvider(ctx, svc, token, r.saveToken)
}

// saveToken writes a refreshed token back to the config file. Failing to save only warns;
// the token stays valid for the rest of the run.
func (r *Runner) saveToken(token *oauth2.Token) error {
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return err
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("failed to save refreshed token", "path", r.configPath, "error", err)
		return nil
	}
	r.logger.Debug("saved refreshed token", "path", r.configPath)
	return nil
}

func (r *Runner) likedLister() services.LikedLister {
	if r.lister != nil {
		return r.lister
	}
	return services.NewSpotifyLister()
}

func (r *Runner) completer() services.Completer {
	if r.llm != nil {
		return r.llm
	}
	llm := r.config.Credentials.LLM
	return services.NewOpenAIService(llm.BaseURL, llm.APIKey)
}

// openHistory opens the run history database, or returns nil when history is disabled.
func (r *Runner) openHistory() (*sql.DB, *repositories.RunRepository, error) {
	db, err := shared.OpenHistory(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run history: %w", err)
	}
	if db == nil {
		return nil, nil, nil
	}
	return db, repositories.NewRunRepository(db), nil
}

// engine wires a pipeline [tasks.Engine] from the config.
func (r *Runner) engine(ctx context.Context, reclassify bool, recorder tasks.RunRecorder) (*tasks.Engine, error) {
	tokens, err := r.tokenProvider(ctx)
	if err != nil {
		return nil, err
	}

	cfg := r.config
	fetcher := tasks.NewFetcher(tokens, r.likedLister(), tasks.FetcherOptions{
		PageSize:          cfg.Fetcher.PageSize,
		MaxAttempts:       cfg.Fetcher.MaxAttempts,
		RetryDelay:        cfg.Fetcher.RetryDelay(),
		RequestsPerSecond: cfg.Fetcher.RequestsPerSecond,
	}, r.logger)

	c := classifier.New(r.completer(), classifier.Options{
		Model:       cfg.Credentials.LLM.Model,
		BatchSize:   cfg.Classifier.BatchSize,
		MaxAttempts: cfg.Classifier.MaxAttempts,
		RetryDelay:  cfg.Classifier.RetryDelay(),
		Temperature: &cfg.Classifier.Temperature,
		MaxHints:    cfg.Classifier.MaxHints,
	}, r.logger)

	engineCfg := tasks.EngineConfig{
		Fetcher:          fetcher,
		Songs:            r.songStore(),
		Categories:       r.categoryStore(),
		Classifier:       c,
		SummaryPath:      cfg.Files.Summary,
		Reclassify:       reclassify || cfg.Classifier.Reclassify,
		BatchesPerSecond: cfg.Classifier.RequestsPerSecond,
		Recorder:         recorder,
		Logger:           r.logger,
	}
	return tasks.NewEngine(engineCfg), nil
}

func (r *Runner) format(cmd *cli.Command) (formatter.Format, error) {
	return formatter.ParseFormat(cmd.String("format"))
}

func (r *Runner) write(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
