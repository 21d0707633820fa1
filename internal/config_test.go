package internal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/storysync/internal/apperr"
	pkgconfig "github.com/starford/storysync/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_ErrorsAreConfigurationErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}

	cfg = NewDefaultConfig()
	cfg.Stories.Dir = ""
	if err := cfg.Validate(); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("empty stories dir: err = %v, want ErrConfiguration", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Stories.Dir != "_bmad-output/stories" {
		t.Errorf("stories dir = %q", cfg.Stories.Dir)
	}
	if cfg.GitHub.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.GitHub.Timeout)
	}
}

func validGitHub() GitHubConfig {
	return GitHubConfig{
		Token:         "tok",
		ProjectID:     "PVT_1",
		StatusFieldID: "PVTSSF_1",
		StatusOptions: StatusOptionsConfig{Todo: "a", InProgress: "b", Done: "c"},
	}
}

func TestGitHubConfig_Validate(t *testing.T) {
	cfg := validGitHub()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid github config: %v", err)
	}

	mutations := map[string]func(*GitHubConfig){
		"token":      func(c *GitHubConfig) { c.Token = "" },
		"project":    func(c *GitHubConfig) { c.ProjectID = "" },
		"field":      func(c *GitHubConfig) { c.StatusFieldID = "" },
		"done":       func(c *GitHubConfig) { c.StatusOptions.Done = "" },
		"inProgress": func(c *GitHubConfig) { c.StatusOptions.InProgress = "" },
	}
	for name, mutate := range mutations {
		cfg := validGitHub()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, apperr.ErrConfiguration) {
			t.Errorf("%s: err = %v, want ErrConfiguration", name, err)
		}
	}
}

func TestGitHubConfig_ClientConfig(t *testing.T) {
	cfg := validGitHub()
	cfg.Timeout = 5 * time.Second
	cc := cfg.ClientConfig()
	if cc.Token != "tok" || cc.StatusOptions.InProgress != "b" || cc.Timeout != 5*time.Second {
		t.Errorf("client config = %+v", cc)
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv(EnvGitHubToken, "env-token")
	t.Setenv(EnvProjectID, "env-project")
	t.Setenv(EnvStatusFieldID, "env-field")
	t.Setenv(EnvStatusTodoID, "env-todo")
	t.Setenv(EnvStatusProgressID, "env-progress")
	t.Setenv(EnvStatusDoneID, "env-done")
	t.Setenv(EnvOutputDir, "env-stories")

	cfg := NewDefaultConfig()
	cfg.GitHub.Token = "file-token"
	cfg.OverrideFromEnv()

	if cfg.GitHub.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.GitHub.Token)
	}
	if cfg.Stories.Dir != "env-stories" {
		t.Errorf("dir = %q, want env-stories", cfg.Stories.Dir)
	}
	if err := cfg.GitHub.Validate(); err != nil {
		t.Errorf("env-provided github config should validate: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv(EnvGitHubToken, "")
	t.Setenv(EnvOutputDir, "")
	t.Setenv(EnvProjectID, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `app:
  log_level: debug
  http:
    port: 9000
stories:
  dir: docs/stories
github:
  project_id: PVT_x
  timeout: 10s
watch:
  debounce: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadOptional(path, cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.App.HTTP.Port != 9000 || cfg.Stories.Dir != "docs/stories" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.GitHub.ProjectID != "PVT_x" || cfg.GitHub.Timeout != 10*time.Second {
		t.Errorf("github = %+v", cfg.GitHub)
	}
	if cfg.GitHub.Endpoint == "" {
		t.Error("default endpoint lost")
	}
	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
}
