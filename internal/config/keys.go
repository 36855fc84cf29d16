package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "IVY_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_enabled", typ: kBool, env: "IVY_SERVER_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCPEnabled },
	},
	{
		key: "api_token", typ: kString, env: "IVY_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "engine.provider", typ: kString, env: "IVY_ENGINE_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Engine.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Provider },
	},
	{
		key: "engine.ollama_base_url", typ: kString, env: "IVY_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Engine.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.OllamaBaseURL },
	},
	{
		key: "engine.openai_base_url", typ: kString, env: "IVY_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Engine.OpenAIBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.OpenAIBaseURL },
	},
	{
		key: "api_key", typ: kString, env: "IVY_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Engine.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.APIKey },
	},
	{
		key: "engine.extract_model", typ: kString, env: "IVY_EXTRACT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Engine.ExtractModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.ExtractModel },
	},
	{
		key: "engine.recommend_model", typ: kString, env: "IVY_RECOMMEND_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Engine.RecommendModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.RecommendModel },
	},
	{
		key: "speech.transcriber", typ: kString, env: "IVY_SPEECH_TRANSCRIBER",
		apply:   func(cfg *Config, v any) { cfg.Speech.Transcriber = v.(string) },
		extract: func(cfg Config) any { return cfg.Speech.Transcriber },
	},
	{
		key: "speech.whisper_model", typ: kString, env: "IVY_WHISPER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Speech.WhisperModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Speech.WhisperModel },
	},
	{
		key: "speech.tts_model", typ: kString, env: "IVY_TTS_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Speech.TTSModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Speech.TTSModel },
	},
	{
		key: "speech.tts_voice", typ: kString, env: "IVY_TTS_VOICE",
		apply:   func(cfg *Config, v any) { cfg.Speech.TTSVoice = v.(string) },
		extract: func(cfg Config) any { return cfg.Speech.TTSVoice },
	},
	{
		key: "deepgram_api_key", typ: kString, env: "DEEPGRAM_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Speech.DeepgramAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Speech.DeepgramAPIKey },
	},
	{
		key: "storage.data_dir", typ: kString, env: "IVY_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "session.ttl", typ: kDuration, env: "IVY_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Session.TTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Session.TTL },
	},
	{
		key: "session.history_limit", typ: kInt, env: "IVY_SESSION_HISTORY_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Session.HistoryLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Session.HistoryLimit },
	},
	{
		key: "cache.size", typ: kInt, env: "IVY_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Cache.Size = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.Size },
	},
	{
		key: "timeouts.extract", typ: kDuration, env: "IVY_TIMEOUT_EXTRACT",
		apply:   func(cfg *Config, v any) { cfg.Timeouts.Extract = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Timeouts.Extract },
	},
	{
		key: "timeouts.recommend", typ: kDuration, env: "IVY_TIMEOUT_RECOMMEND",
		apply:   func(cfg *Config, v any) { cfg.Timeouts.Recommend = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Timeouts.Recommend },
	},
	{
		key: "timeouts.transcribe", typ: kDuration, env: "IVY_TIMEOUT_TRANSCRIBE",
		apply:   func(cfg *Config, v any) { cfg.Timeouts.Transcribe = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Timeouts.Transcribe },
	},
	{
		key: "timeouts.synthesize", typ: kDuration, env: "IVY_TIMEOUT_SYNTHESIZE",
		apply:   func(cfg *Config, v any) { cfg.Timeouts.Synthesize = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Timeouts.Synthesize },
	},
	{
		key: "log.level", typ: kString, env: "IVY_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse converts raw into the key's value type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := b.Lookup(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
