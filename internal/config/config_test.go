package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockSecrets is a test double for the secret store.
type mockSecrets map[string]string

func (m mockSecrets) Get(account string) (string, error) {
	v, ok := m[account]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
	t.Setenv("GROQ_API_KEY", "")
}

func writeTempConfig(t *testing.T, content string) *fileBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return newFileBackend(path)
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Engine.Provider != ProviderOllama {
		t.Errorf("Engine.Provider = %q, want %q", cfg.Engine.Provider, ProviderOllama)
	}
	if cfg.Engine.OllamaBaseURL != "http://localhost:11434" {
		t.Errorf("Engine.OllamaBaseURL = %q", cfg.Engine.OllamaBaseURL)
	}
	if cfg.Speech.WhisperModel != "whisper-large-v3" {
		t.Errorf("Speech.WhisperModel = %q", cfg.Speech.WhisperModel)
	}
	if cfg.Session.HistoryLimit != 30 {
		t.Errorf("Session.HistoryLimit = %d, want 30", cfg.Session.HistoryLimit)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Session.TTL = %v, want 30m", cfg.Session.TTL)
	}
	if cfg.Timeouts.Extract != 3*time.Second {
		t.Errorf("Timeouts.Extract = %v, want 3s", cfg.Timeouts.Extract)
	}
	if cfg.Timeouts.Synthesize != 15*time.Second {
		t.Errorf("Timeouts.Synthesize = %v, want 15s", cfg.Timeouts.Synthesize)
	}
	extract, recommend := cfg.Engine.Models()
	if extract != "llama3.1" || recommend != "llama3.1" {
		t.Errorf("Models() = %q, %q", extract, recommend)
	}
}

// TestFileParsing verifies that fields are correctly read from the JSON file.
func TestFileParsing(t *testing.T) {
	clearEnv(t)

	b := writeTempConfig(t, `{
		"server.port": 5000,
		"server.mcp_enabled": "true",
		"engine.ollama_base_url": "http://custom:11434",
		"engine.extract_model": "qwen2.5",
		"session.ttl": "2h",
		"session.history_limit": 50,
		"storage.data_dir": "/tmp/ivy-test"
	}`)

	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if !cfg.Server.MCPEnabled {
		t.Error("Server.MCPEnabled = false, want true")
	}
	if cfg.Engine.OllamaBaseURL != "http://custom:11434" {
		t.Errorf("Engine.OllamaBaseURL = %q", cfg.Engine.OllamaBaseURL)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Errorf("Session.TTL = %v, want 2h", cfg.Session.TTL)
	}
	if cfg.Session.HistoryLimit != 50 {
		t.Errorf("Session.HistoryLimit = %d, want 50", cfg.Session.HistoryLimit)
	}
	if cfg.Storage.DataDir != "/tmp/ivy-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if extract, recommend := cfg.Engine.Models(); extract != "qwen2.5" || recommend != "llama3.1" {
		t.Errorf("Models() = %q, %q", extract, recommend)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("IVY_SERVER_PORT", "7000")
	t.Setenv("IVY_TIMEOUT_RECOMMEND", "5s")
	t.Setenv("IVY_TIMEOUT_SYNTHESIZE", "40s")

	cfg, err := loadWith(writeTempConfig(t, `{"server.port": 5000}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Timeouts.Recommend != 5*time.Second {
		t.Errorf("Timeouts.Recommend = %v, want 5s", cfg.Timeouts.Recommend)
	}
	if cfg.Timeouts.Synthesize != 40*time.Second {
		t.Errorf("Timeouts.Synthesize = %v, want 40s", cfg.Timeouts.Synthesize)
	}
}

func TestBadEnvValueKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("IVY_SESSION_TTL", "forever")

	cfg, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Session.TTL = %v, want default", cfg.Session.TTL)
	}
}

// TestMissingAPIKey verifies a clear error when the cloud provider has no key.
func TestMissingAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("IVY_ENGINE_PROVIDER", ProviderOpenAI)

	_, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestAPIKeySources(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		secrets mockSecrets
		want    string
	}{
		{"ivy env", map[string]string{"IVY_API_KEY": "ivy-key", "GROQ_API_KEY": "groq-key"}, mockSecrets{"api_key": "file-key"}, "ivy-key"},
		{"groq env", map[string]string{"GROQ_API_KEY": "groq-key"}, mockSecrets{"api_key": "file-key"}, "groq-key"},
		{"secrets file", nil, mockSecrets{"api_key": "file-key"}, "file-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("IVY_ENGINE_PROVIDER", ProviderOpenAI)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := loadWith(writeTempConfig(t, `{}`), tt.secrets)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Engine.APIKey != tt.want {
				t.Errorf("APIKey = %q, want %q", cfg.Engine.APIKey, tt.want)
			}
			if extract, _ := cfg.Engine.Models(); extract != "llama-3.1-8b-instant" {
				t.Errorf("extract model = %q", extract)
			}
		})
	}
}

func TestInvalidProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("IVY_ENGINE_PROVIDER", "mlx")
	if _, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestInvalidTranscriber(t *testing.T) {
	clearEnv(t)
	t.Setenv("IVY_SPEECH_TRANSCRIBER", "gtts")
	if _, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{}); err == nil {
		t.Fatal("expected error for unknown transcriber")
	}
}

func TestSetKey(t *testing.T) {
	dir := t.TempDir()
	b := newFileBackend(filepath.Join(dir, "config.json"))
	secrets := fileSecrets{path: filepath.Join(dir, "secrets.json")}

	if err := setKey(b, secrets, "server.port", "4100"); err != nil {
		t.Fatalf("setKey port: %v", err)
	}
	if err := setKey(b, secrets, "session.ttl", "45m"); err != nil {
		t.Fatalf("setKey ttl: %v", err)
	}
	if err := setKey(b, secrets, "api_key", "sk-secret"); err != nil {
		t.Fatalf("setKey api_key: %v", err)
	}

	if err := setKey(b, secrets, "session.ttl", "soon"); err == nil {
		t.Error("expected error for bad duration")
	}
	if err := setKey(b, secrets, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	clearEnv(t)
	reloaded := newFileBackend(b.path)
	cfg, err := loadWith(reloaded, secrets)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Session.TTL != 45*time.Minute {
		t.Errorf("Session.TTL = %v, want 45m", cfg.Session.TTL)
	}
	if cfg.Engine.APIKey != "sk-secret" {
		t.Errorf("APIKey = %q, want sk-secret", cfg.Engine.APIKey)
	}

	if _, ok := reloaded.data["api_key"]; ok {
		t.Error("secret written to the plain config file")
	}
}

func TestSetKey_StoresTypedJSON(t *testing.T) {
	dir := t.TempDir()
	b := newFileBackend(filepath.Join(dir, "config.json"))
	secrets := fileSecrets{path: filepath.Join(dir, "secrets.json")}

	for key, value := range map[string]string{
		"server.port":        "4100",
		"server.mcp_enabled": "true",
		"session.ttl":        "45m",
	} {
		if err := setKey(b, secrets, key, value); err != nil {
			t.Fatalf("setKey %s: %v", key, err)
		}
	}

	raw, err := os.ReadFile(b.path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("config file is not JSON: %v", err)
	}
	if v, ok := onDisk["server.port"].(float64); !ok || v != 4100 {
		t.Errorf("server.port = %#v, want number 4100", onDisk["server.port"])
	}
	if v, ok := onDisk["server.mcp_enabled"].(bool); !ok || !v {
		t.Errorf("server.mcp_enabled = %#v, want true", onDisk["server.mcp_enabled"])
	}
	if v, ok := onDisk["session.ttl"].(string); !ok || v != "45m" {
		t.Errorf("session.ttl = %#v, want \"45m\"", onDisk["session.ttl"])
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("config dir has %d entries, want only config.json", len(entries))
	}
}

func TestFileBackend_UnparseableValueKeepsDefault(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(writeTempConfig(t, `{"server.port": "abc", "session.ttl": null}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want default 4000", cfg.Server.Port)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Session.TTL = %v, want default 30m", cfg.Session.TTL)
	}
}

func TestFileBackend_NestedValueRejected(t *testing.T) {
	clearEnv(t)

	if _, err := loadWith(writeTempConfig(t, `{"server.port": {"value": 5000}}`), mockSecrets{}); err == nil {
		t.Error("expected error for an object value")
	}
}

func TestShowAll_MasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Engine.APIKey = "sk-secret"

	found := false
	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Value, "sk-secret") {
			t.Errorf("%s leaks secret", ki.Key)
		}
		if ki.Key == "api_key" {
			found = true
		}
	}
	if !found {
		t.Error("api_key not listed")
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	if len(keys) != len(specs) {
		t.Errorf("got %d keys, want %d", len(keys), len(specs))
	}
}
