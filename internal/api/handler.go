package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kalambet/ivy/internal/dialogue"
	"github.com/kalambet/ivy/internal/logging"
	"github.com/kalambet/ivy/internal/session"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxAudioBodySize   = 10 << 20 // 10MB
)

// Sessions is the session layer the API drives.
// Implemented by session.Manager.
type Sessions interface {
	Create(ctx context.Context) (session.Started, error)
	Get(ctx context.Context, id string) (session.Info, error)
	Turn(ctx context.Context, id, utterance string) (dialogue.TurnResult, error)
	AudioTurn(ctx context.Context, id string, audio []byte) (session.AudioResult, error)
	History(ctx context.Context, id string) ([]session.Message, error)
	Delete(ctx context.Context, id string) error
}

// Speaker synthesises replies. Implemented by speech.Service.
type Speaker interface {
	Synthesize(ctx context.Context, text string) []byte
	CanSpeak() bool
}

type Deps struct {
	Sessions Sessions
	Speech   Speaker // optional; if nil, /speech answers 503
	Token    string  // optional; if empty, the API is unauthenticated
	Engine   string  // reported by /health
}

// TurnRequest is the body of POST /sessions/{id}/turns and /speech.
type TurnRequest struct {
	Text string `json:"text"`
}

type sessionResponse struct {
	session.Info
	History []session.Message `json:"history,omitempty"`
}

// NewHandler returns the HTTP API: session lifecycle, turns, audio and speech.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/sessions", handleCreateSession(deps))
		r.Get("/sessions/{id}", handleGetSession(deps))
		r.Delete("/sessions/{id}", handleDeleteSession(deps))
		r.Post("/sessions/{id}/turns", handleTurn(deps))
		r.Post("/sessions/{id}/audio", handleAudio(deps))
		r.Get("/sessions/{id}/profile", handleProfile(deps))
		r.Get("/sessions/{id}/history", handleHistory(deps))
		r.Post("/speech", handleSpeech(deps))
	})

	return otelhttp.NewHandler(r, "ivy")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.FromContext(r.Context()).Debug("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		speech := deps.Speech != nil && deps.Speech.CanSpeak()
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"engine": deps.Engine,
			"speech": speech,
		})
	}
}

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started, err := deps.Sessions.Create(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating session: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, started)
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		info, err := deps.Sessions.Get(r.Context(), id)
		if err != nil {
			sessionError(w, err)
			return
		}
		hist, err := deps.Sessions.History(r.Context(), id)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Info: info, History: hist})
	}
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			sessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleTurn(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res, err := deps.Sessions.Turn(r.Context(), chi.URLParam(r, "id"), req.Text)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleAudio(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAudioBodySize)
		defer r.Body.Close()

		audio, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "reading audio: %v", err)
			return
		}
		if len(audio) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "audio body is required")
			return
		}

		res, err := deps.Sessions.AudioTurn(r.Context(), chi.URLParam(r, "id"), audio)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := deps.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info.Profile)
	}
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hist, err := deps.Sessions.History(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		if hist == nil {
			hist = []session.Message{}
		}
		writeJSON(w, http.StatusOK, hist)
	}
}

func handleSpeech(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Speech == nil || !deps.Speech.CanSpeak() {
			httpError(w, http.StatusServiceUnavailable, "api_error", "speech synthesis is not configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		audio := deps.Speech.Synthesize(r.Context(), req.Text)
		if audio == nil {
			httpError(w, http.StatusBadGateway, "api_error", "speech synthesis failed")
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}
}

func sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found_error", "session not found")
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
