package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "hello")
	t.Setenv("TEST_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"${TEST_VAR}", "hello"},
		{"${TEST_VAR:default}", "hello"},
		{"${TEST_UNSET_VAR:fallback}", "fallback"},
		{"${TEST_UNSET_VAR}", ""},
		{"${TEST_UNSET_VAR:}", ""},
		{"${TEST_EMPTY:ignored}", ""},
		{"no vars here", "no vars here"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
		{"${TEST_VAR}${TEST_UNSET_VAR:2}", "hello2"},
		{"postgres://${TEST_UNSET_VAR:localhost}:5432", "postgres://localhost:5432"},
	}
	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TEST_PORT", "7777")
	dir := writeConfigDir(t, map[string]string{
		"plain.yaml": "server:\n  host: \"0.0.0.0\"\n  port: 9999\n",
		"env.yaml":   "server:\n  host: \"${TEST_HOST_UNSET:127.0.0.1}\"\n  port: ${TEST_PORT}\n",
	})

	tests := []struct {
		file     string
		wantHost string
		wantPort int
	}{
		{"plain.yaml", "0.0.0.0", 9999},
		{"env.yaml", "127.0.0.1", 7777},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			var cfg Config
			if err := LoadFile(filepath.Join(dir, tt.file), &cfg); err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if cfg.Server.Host != tt.wantHost || cfg.Server.Port != tt.wantPort {
				t.Errorf("got %s:%d, want %s:%d", cfg.Server.Host, cfg.Server.Port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{"bad.yaml": "server: [unclosed\n"})
	var cfg Config
	if err := LoadFile(filepath.Join(dir, "missing.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}
	if err := LoadFile(filepath.Join(dir, "bad.yaml"), &cfg); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const testPipelineYAML = `
provider: openai
model: gpt-4o
stages:
  - name: generate
    system: "You build apps."
    max_tokens: 3000
    temperature: 0.8
  - name: refine
    system: "You refine apps."
    directive: "Add more polish."
    max_tokens: 3500
    temperature: 0.7
`

const testProvidersYAML = `
providers:
  openai:
    type: openai
    base_url: https://api.openai.com/v1
    api_key: "${TEST_OPENAI_KEY:sk-test}"
    timeout: 60s
`

func TestLoader_Load(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"gateway.yaml":   "server:\n  port: ${TEST_APPGEN_PORT:3100}\nauth:\n  mode: headers\n",
		"pipeline.yaml":  testPipelineYAML,
		"providers.yaml": testProvidersYAML,
	})

	l := NewLoader(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := l.Config()
	if cfg.Server.Port != 3100 {
		t.Errorf("expected port 3100, got %d", cfg.Server.Port)
	}
	if cfg.Auth.Mode != "headers" {
		t.Errorf("expected auth mode headers, got %s", cfg.Auth.Mode)
	}
	// Unset sections keep their defaults.
	if cfg.Server.GracefulShutdown != 30*time.Second {
		t.Errorf("expected default graceful shutdown, got %v", cfg.Server.GracefulShutdown)
	}

	p := l.Pipeline()
	if len(p.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(p.Stages))
	}
	if p.Stages[1].Temperature != 0.7 || p.Stages[1].MaxTokens != 3500 {
		t.Errorf("unexpected stage 1 settings: %+v", p.Stages[1])
	}

	prov := l.Providers().Providers["openai"]
	if prov.APIKey != "sk-test" {
		t.Errorf("expected default api key sk-test, got %q", prov.APIKey)
	}
	if prov.Timeout != 60*time.Second {
		t.Errorf("expected timeout 60s, got %v", prov.Timeout)
	}
}

func TestLoader_Load_NoStages(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"gateway.yaml":   "server:\n  port: 3000\n",
		"pipeline.yaml":  "provider: openai\nstages: []\n",
		"providers.yaml": testProvidersYAML,
	})

	l := NewLoader(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := l.Load(); err == nil {
		t.Fatal("expected error for empty stage list")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TEST_DOTENV_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TEST_DOTENV_VALUE") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("TEST_DOTENV_VALUE"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing env file should not error, got %v", err)
	}
}

func TestLoader_AnthropicKeyFallback(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY_UNSET", "")
	t.Setenv("CLAUDE_API_KEY", "sk-ant-from-claude")
	dir := writeConfigDir(t, map[string]string{
		"gateway.yaml":  "server:\n  port: 3000\n",
		"pipeline.yaml": testPipelineYAML,
		"providers.yaml": `
providers:
  anthropic:
    type: anthropic
    api_key: "${TEST_ANTHROPIC_KEY_UNSET}"
  pinned:
    type: anthropic
    api_key: sk-ant-explicit
`,
	})

	l := NewLoader(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := l.Providers().Providers["anthropic"].APIKey; got != "sk-ant-from-claude" {
		t.Errorf("expected CLAUDE_API_KEY fallback, got %q", got)
	}
	if got := l.Providers().Providers["pinned"].APIKey; got != "sk-ant-explicit" {
		t.Errorf("explicit key should win, got %q", got)
	}
}

func TestDatabaseFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USER", "svc")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "apps")

	if got, want := DatabaseFromEnv().DSN(), "postgres://svc:pw@db.internal:6543/apps?sslmode=disable"; got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}

	t.Setenv("DATABASE_URL", "postgres://u:p@h/db")
	if got := DatabaseFromEnv().DSN(); got != "postgres://u:p@h/db" {
		t.Errorf("DATABASE_URL should win, got %q", got)
	}
}

func TestLoader_Reload(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"gateway.yaml":   "server:\n  port: 3000\n",
		"pipeline.yaml":  testPipelineYAML,
		"providers.yaml": testProvidersYAML,
	})
	l := NewLoader(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	calls := 0
	l.OnReload(func() { calls++ })

	if err := os.WriteFile(filepath.Join(dir, "gateway.yaml"), []byte("server:\n  port: 4000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := l.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if l.Config().Server.Port != 4000 || calls != 1 {
		t.Errorf("after reload: port=%d calls=%d", l.Config().Server.Port, calls)
	}

	// A broken pipeline file leaves the previous configuration in place.
	if err := os.WriteFile(filepath.Join(dir, "pipeline.yaml"), []byte("stages: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := l.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if len(l.Pipeline().Stages) != 2 || calls != 1 {
		t.Errorf("failed reload changed state: stages=%d calls=%d", len(l.Pipeline().Stages), calls)
	}
}

func TestLoader_BeforeLoad(t *testing.T) {
	l := NewLoader(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if l.Config() != nil || l.Pipeline() != nil || l.Providers() != nil {
		t.Error("expected nil configuration before Load")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close without Watch: %v", err)
	}
}

func TestShippedGatewayConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := LoadFile(filepath.Join("..", "..", "configs", "gateway.yaml"), cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	inj := cfg.Filter.Injection
	if inj.Enabled {
		t.Error("injection screening should be opt-in")
	}
	if inj.BlockThreshold <= 0.9 {
		t.Errorf("block threshold %.2f lets a single topic rule block", inj.BlockThreshold)
	}
	if def := DefaultConfig().Filter.Injection; def.Enabled || def.BlockThreshold <= 0.9 {
		t.Errorf("unexpected injection defaults %+v", def)
	}
}
