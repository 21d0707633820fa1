package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/storysync/internal/apperr"
	"github.com/starford/storysync/internal/ghproject"
	"github.com/starford/storysync/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Environment variables that override file values.
const (
	EnvGitHubToken      = "GITHUB_TOKEN"
	EnvProjectID        = "GITHUB_PROJECT_ID"
	EnvStatusFieldID    = "GITHUB_STATUS_FIELD_ID"
	EnvStatusTodoID     = "GITHUB_STATUS_TODO_ID"
	EnvStatusProgressID = "GITHUB_STATUS_IN_PROGRESS_ID"
	EnvStatusDoneID     = "GITHUB_STATUS_DONE_ID"
	EnvOutputDir        = "BMAD_OUTPUT_DIR"
)

// DefaultStoriesDir is where stories live when nothing else is configured.
const DefaultStoriesDir = "_bmad-output/stories"

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Stories StoriesConfig     `yaml:"stories"`
	GitHub  GitHubConfig      `yaml:"github"`
	Journal JournalConfig     `yaml:"journal"`
	Auth    AuthConfig        `yaml:"auth"`
	Watch   WatchConfig       `yaml:"watch"`
}

// Validate validates everything except the GitHub section, which is checked
// by the commands that talk to the board.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Stories.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// OverrideFromEnv applies the environment overlay. Unset or empty variables
// leave the file value in place.
func (c *Config) OverrideFromEnv() {
	setFromEnv(&c.GitHub.Token, EnvGitHubToken)
	setFromEnv(&c.GitHub.ProjectID, EnvProjectID)
	setFromEnv(&c.GitHub.StatusFieldID, EnvStatusFieldID)
	setFromEnv(&c.GitHub.StatusOptions.Todo, EnvStatusTodoID)
	setFromEnv(&c.GitHub.StatusOptions.InProgress, EnvStatusProgressID)
	setFromEnv(&c.GitHub.StatusOptions.Done, EnvStatusDoneID)
	setFromEnv(&c.Stories.Dir, EnvOutputDir)
}

func setFromEnv(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, when set, receives logs through a rotating writer instead of stderr.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoriesConfig holds the path to the story directory.
type StoriesConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the stories configuration.
func (c *StoriesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// GitHubConfig identifies the project board and its status field.
type GitHubConfig struct {
	Endpoint        string              `yaml:"endpoint"`
	Token           string              `yaml:"token"`
	ProjectID       string              `yaml:"project_id"`
	StatusFieldID   string              `yaml:"status_field_id"`
	StatusFieldName string              `yaml:"status_field_name"`
	StatusOptions   StatusOptionsConfig `yaml:"status_options"`
	Timeout         time.Duration       `yaml:"timeout"`
}

// Validate reports missing credentials or identifiers as ErrConfiguration.
func (c *GitHubConfig) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.Required.Error("is required (set "+EnvGitHubToken+")")),
		validation.Field(&c.ProjectID, validation.Required.Error("is required (set "+EnvProjectID+")")),
		validation.Field(&c.StatusFieldID, validation.Required.Error("is required (set "+EnvStatusFieldID+")")),
		validation.Field(&c.StatusOptions),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return fmt.Errorf("%w: github: %v", apperr.ErrConfiguration, err)
	}
	return nil
}

// ClientConfig converts the section into the board client configuration.
func (c *GitHubConfig) ClientConfig() ghproject.Config {
	return ghproject.Config{
		Endpoint:        c.Endpoint,
		Token:           c.Token,
		ProjectID:       c.ProjectID,
		StatusFieldID:   c.StatusFieldID,
		StatusFieldName: c.StatusFieldName,
		StatusOptions: ghproject.StatusOptions{
			Todo:       c.StatusOptions.Todo,
			InProgress: c.StatusOptions.InProgress,
			Done:       c.StatusOptions.Done,
		},
		Timeout: c.Timeout,
	}
}

// StatusOptionsConfig holds the single-select option id of each status.
type StatusOptionsConfig struct {
	Todo       string `yaml:"todo"`
	InProgress string `yaml:"in_progress"`
	Done       string `yaml:"done"`
}

// Validate validates the status option ids.
func (c StatusOptionsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Todo, validation.Required.Error("is required (set "+EnvStatusTodoID+")")),
		validation.Field(&c.InProgress, validation.Required.Error("is required (set "+EnvStatusProgressID+")")),
		validation.Field(&c.Done, validation.Required.Error("is required (set "+EnvStatusDoneID+")")),
	)
}

// JournalConfig holds the run journal location. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether runs should be journaled.
func (c *JournalConfig) Enabled() bool {
	return c.Path != ""
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds HTTP API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Stories: StoriesConfig{
			Dir: DefaultStoriesDir,
		},
		GitHub: GitHubConfig{
			Endpoint:        ghproject.DefaultEndpoint,
			StatusFieldName: ghproject.DefaultStatusFieldName,
			Timeout:         30 * time.Second,
		},
		Journal: JournalConfig{
			Path: ".storysync/journal.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
	}
}
