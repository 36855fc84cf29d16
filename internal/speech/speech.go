// Package speech converts between the student's voice and text.
package speech

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/ivy/internal/capability"
)

const (
	// DefaultTranscribeTimeout bounds one transcription when none is configured.
	DefaultTranscribeTimeout = 15 * time.Second
	// DefaultSynthesizeTimeout bounds one synthesis when none is configured.
	DefaultSynthesizeTimeout = 15 * time.Second
)

// Transcriber turns a recorded clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Service hides engine failures from callers: a clip that cannot be
// transcribed yields "" and text that cannot be spoken yields nil.
type Service struct {
	stt             Transcriber
	tts             Synthesizer
	transcribeLimit time.Duration
	synthesizeLimit time.Duration
}

// NewService creates a Service. Either engine may be nil to disable that
// direction. The timeouts bound one call each; <= 0 selects the default.
func NewService(stt Transcriber, tts Synthesizer, transcribe, synthesize time.Duration) *Service {
	if transcribe <= 0 {
		transcribe = DefaultTranscribeTimeout
	}
	if synthesize <= 0 {
		synthesize = DefaultSynthesizeTimeout
	}
	return &Service{stt: stt, tts: tts, transcribeLimit: transcribe, synthesizeLimit: synthesize}
}

// Transcribe returns the text heard in audio, or "" if none.
func (s *Service) Transcribe(ctx context.Context, audio []byte) string {
	if s.stt == nil || len(audio) == 0 {
		return ""
	}
	res := capability.Call(ctx, s.transcribeLimit, func(ctx context.Context) (string, error) {
		return s.stt.Transcribe(ctx, audio)
	})
	if !res.OK() {
		slog.Warn("transcription failed", "error", res.Err)
	}
	return strings.TrimSpace(res.Or(""))
}

// Synthesize returns spoken audio for text, or nil if it cannot be produced.
func (s *Service) Synthesize(ctx context.Context, text string) []byte {
	text = strings.TrimSpace(text)
	if s.tts == nil || text == "" {
		return nil
	}
	res := capability.Call(ctx, s.synthesizeLimit, func(ctx context.Context) ([]byte, error) {
		return s.tts.Synthesize(ctx, text)
	})
	if !res.OK() {
		slog.Warn("speech synthesis failed", "error", res.Err)
	}
	return res.Or(nil)
}

// CanSpeak reports whether a synthesizer is configured.
func (s *Service) CanSpeak() bool {
	return s.tts != nil
}
