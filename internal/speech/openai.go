package speech

import (
	"context"
	"fmt"

	"github.com/kalambet/ivy/internal/proxy"
)

const (
	DefaultWhisperModel = "whisper-large-v3"
	DefaultTTSModel     = "tts-1"
	DefaultVoice        = "alloy"
)

// AudioAPI is the subset of proxy.Client the OpenAI-compatible engines use.
type AudioAPI interface {
	Transcribe(ctx context.Context, model string, audio []byte, filename string) (string, error)
	Speech(ctx context.Context, req proxy.SpeechRequest) ([]byte, error)
}

// WhisperTranscriber calls an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperTranscriber struct {
	api   AudioAPI
	model string
}

func NewWhisperTranscriber(api AudioAPI, model string) *WhisperTranscriber {
	if model == "" {
		model = DefaultWhisperModel
	}
	return &WhisperTranscriber{api: api, model: model}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	text, err := w.api.Transcribe(ctx, w.model, audio, "speech.webm")
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	return text, nil
}

// OpenAISynthesizer calls an OpenAI-compatible /audio/speech endpoint and
// returns mp3 audio.
type OpenAISynthesizer struct {
	api   AudioAPI
	model string
	voice string
}

func NewOpenAISynthesizer(api AudioAPI, model, voice string) *OpenAISynthesizer {
	if model == "" {
		model = DefaultTTSModel
	}
	if voice == "" {
		voice = DefaultVoice
	}
	return &OpenAISynthesizer{api: api, model: model, voice: voice}
}

func (o *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	audio, err := o.api.Speech(ctx, proxy.SpeechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	return audio, nil
}
