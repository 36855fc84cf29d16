package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Engine providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Transcription engines.
const (
	TranscriberWhisper  = "whisper"
	TranscriberDeepgram = "deepgram"
)

type Config struct {
	Server   ServerConfig
	Engine   EngineConfig
	Speech   SpeechConfig
	Storage  StorageConfig
	Session  SessionConfig
	Cache    CacheConfig
	Timeouts TimeoutConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port       int
	MCPEnabled bool
	// APIToken, when set, is required as a bearer token on every API call.
	APIToken string
}

type EngineConfig struct {
	Provider       string
	OllamaBaseURL  string
	OpenAIBaseURL  string
	APIKey         string
	ExtractModel   string
	RecommendModel string
}

type SpeechConfig struct {
	Transcriber    string
	WhisperModel   string
	TTSModel       string
	TTSVoice       string
	DeepgramAPIKey string
}

type StorageConfig struct {
	DataDir string
}

type SessionConfig struct {
	TTL          time.Duration
	HistoryLimit int
}

type CacheConfig struct {
	Size int
}

type TimeoutConfig struct {
	Extract    time.Duration
	Recommend  time.Duration
	Transcribe time.Duration
	Synthesize time.Duration
}

type LogConfig struct {
	Level string
}

// Models returns the extraction and recommendation models, falling back to
// sensible defaults for the configured provider.
func (e EngineConfig) Models() (extract, recommend string) {
	extract, recommend = e.ExtractModel, e.RecommendModel
	def := "llama3.1"
	if e.Provider == ProviderOpenAI {
		def = "llama-3.1-8b-instant"
	}
	if extract == "" {
		extract = def
	}
	if recommend == "" {
		recommend = def
	}
	return extract, recommend
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Engine: EngineConfig{
			Provider:      ProviderOllama,
			OllamaBaseURL: "http://localhost:11434",
			OpenAIBaseURL: "https://api.groq.com/openai/v1",
		},
		Speech: SpeechConfig{
			Transcriber:  TranscriberWhisper,
			WhisperModel: "whisper-large-v3",
			TTSModel:     "tts-1",
			TTSVoice:     "alloy",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Session: SessionConfig{
			TTL:          30 * time.Minute,
			HistoryLimit: 30,
		},
		Cache: CacheConfig{
			Size: 256,
		},
		Timeouts: TimeoutConfig{
			Extract:    3 * time.Second,
			Recommend:  20 * time.Second,
			Transcribe: 15 * time.Second,
			Synthesize: 15 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ErrMissingAPIKey is returned when the cloud provider is selected without a key.
var ErrMissingAPIKey = errors.New("missing required config: API key for the openai provider")

// Load reads configuration from the JSON file backend, environment variables
// and the secrets file.
//
// The backend is a JSON file at $XDG_CONFIG_HOME/ivy/config.json. Secrets
// come from environment variables or $XDG_DATA_HOME/ivy/secrets.json.
// Environment variables (IVY_*) override file values.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), fileSecrets{path: secretsFilePath()})
}

// secretReader abstracts the secret store for testing.
type secretReader interface {
	Get(account string) (string, error)
}

func loadWith(b ConfigBackend, secrets secretReader) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// GROQ_API_KEY is honoured for compatibility with existing .env files.
	if cfg.Engine.APIKey == "" {
		cfg.Engine.APIKey = os.Getenv("GROQ_API_KEY")
	}
	applySecrets(&cfg, secrets)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applySecrets(cfg *Config, secrets secretReader) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := secrets.Get(s.key); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Engine.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if cfg.Engine.APIKey == "" {
			return fmt.Errorf("%w: set IVY_API_KEY or GROQ_API_KEY", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("invalid engine.provider %q: want %q or %q", cfg.Engine.Provider, ProviderOllama, ProviderOpenAI)
	}

	switch cfg.Speech.Transcriber {
	case TranscriberWhisper, TranscriberDeepgram, "":
	default:
		return fmt.Errorf("invalid speech.transcriber %q: want %q or %q", cfg.Speech.Transcriber, TranscriberWhisper, TranscriberDeepgram)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	return nil
}
