package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Files       FilesConfig       `toml:"files"`
	Fetcher     FetcherConfig     `toml:"fetcher"`
	Classifier  ClassifierConfig  `toml:"classifier"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	LLM     LLMConfig     `toml:"llm"`
}

// SpotifyConfig contains Spotify API credentials and the last saved OAuth token.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	TokenType    string `toml:"token_type"`
	Expiry       string `toml:"expiry"` // RFC 3339
}

// LLMConfig contains the OpenAI-compatible chat completion endpoint settings.
type LLMConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// FilesConfig names the three persisted files.
type FilesConfig struct {
	LikedSongs string `toml:"liked_songs"`
	Categories string `toml:"categories"`
	Summary    string `toml:"summary"`
	Backup     bool   `toml:"backup"`
}

// FetcherConfig tunes liked-songs paging.
type FetcherConfig struct {
	PageSize          int     `toml:"page_size"`
	MaxAttempts       int     `toml:"max_attempts"`
	RetryDelayMS      int     `toml:"retry_delay_ms"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// ClassifierConfig tunes LLM batching and retries.
type ClassifierConfig struct {
	BatchSize         int     `toml:"batch_size"`
	MaxAttempts       int     `toml:"max_attempts"`
	RetryDelayMS      int     `toml:"retry_delay_ms"`
	Temperature       float64 `toml:"temperature"`
	MaxHints          int     `toml:"max_hints"`
	Reclassify        bool    `toml:"reclassify"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// DatabaseConfig contains run history database settings. An empty path disables history.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the OAuth callback server address.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Map returns the credentials in the shape expected by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token returns the saved OAuth token, or nil when none has been stored.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}

	token := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
	}
	if s.Expiry != "" {
		if exp, err := time.Parse(time.RFC3339, s.Expiry); err == nil {
			token.Expiry = exp
		}
	}
	return token
}

// Update stores token fields, keeping the previous refresh token when the new one omits it.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}

	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenType = token.TokenType
	if token.Expiry.IsZero() {
		s.Expiry = ""
	} else {
		s.Expiry = token.Expiry.UTC().Format(time.RFC3339)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it atomically with owner-only permissions.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0600)
}

// ApplyEnv overrides credentials with SPOTIFY_* and OPENAI_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	set(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	set(&c.Credentials.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	set(&c.Credentials.Spotify.AccessToken, "SPOTIFY_ACCESS_TOKEN")
	set(&c.Credentials.LLM.APIKey, "OPENAI_API_KEY")
	set(&c.Credentials.LLM.Model, "OPENAI_MODEL")
	set(&c.Credentials.LLM.BaseURL, "OPENAI_BASE_URL")
}

// placeholder values shipped in config.example.toml
var placeholders = map[string]bool{
	"":                           true,
	"your_spotify_client_id":     true,
	"your_spotify_client_secret": true,
}

// Validate reports every missing credential and out-of-range option in one error.
func (c *Config) Validate() error {
	var missing []string
	spotify := c.Credentials.Spotify
	if spotify.AccessToken == "" {
		if placeholders[spotify.ClientID] {
			missing = append(missing, "SPOTIFY_CLIENT_ID")
		}
		if placeholders[spotify.ClientSecret] {
			missing = append(missing, "SPOTIFY_CLIENT_SECRET")
		}
	}
	if c.Credentials.LLM.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	var problems []string
	if c.Credentials.LLM.Model == "" {
		problems = append(problems, "credentials.llm.model is empty")
	}
	if c.Files.LikedSongs == "" || c.Files.Categories == "" || c.Files.Summary == "" {
		problems = append(problems, "files.liked_songs, files.categories and files.summary are required")
	}
	if c.Fetcher.PageSize < 1 || c.Fetcher.PageSize > 50 {
		problems = append(problems, fmt.Sprintf("fetcher.page_size must be 1-50, got %d", c.Fetcher.PageSize))
	}
	if c.Classifier.BatchSize < 1 || c.Classifier.BatchSize > 50 {
		problems = append(problems, fmt.Sprintf("classifier.batch_size must be 1-50, got %d", c.Classifier.BatchSize))
	}
	if c.Classifier.Temperature < 0 || c.Classifier.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("classifier.temperature must be 0-2, got %g", c.Classifier.Temperature))
	}
	if c.Classifier.MaxAttempts < 1 || c.Fetcher.MaxAttempts < 1 {
		problems = append(problems, "max_attempts must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	return nil
}

// RetryDelay returns the fetcher's base backoff delay.
func (f FetcherConfig) RetryDelay() time.Duration {
	return time.Duration(f.RetryDelayMS) * time.Millisecond
}

// RetryDelay returns the classifier's base backoff delay.
func (c ClassifierConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}
