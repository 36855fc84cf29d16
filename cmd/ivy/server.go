package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/ivy/internal/api"
	"github.com/kalambet/ivy/internal/careers"
	"github.com/kalambet/ivy/internal/config"
	"github.com/kalambet/ivy/internal/dialogue"
	"github.com/kalambet/ivy/internal/engine"
	"github.com/kalambet/ivy/internal/extract"
	"github.com/kalambet/ivy/internal/logging"
	"github.com/kalambet/ivy/internal/memo"
	"github.com/kalambet/ivy/internal/proxy"
	"github.com/kalambet/ivy/internal/session"
	"github.com/kalambet/ivy/internal/speech"
	"github.com/kalambet/ivy/internal/storage"
)

const janitorPoll = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Ivy server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Ivy system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

// newOrchestrator wires the dialogue core to an inference engine: memoised
// LLM trait extraction behind the pattern rules, and memoised path
// generation behind the completion gate.
func newOrchestrator(cfg config.Config, eng engine.Chatter) *dialogue.Orchestrator {
	extractModel, recommendModel := cfg.Engine.Models()

	facts := memo.Facts(extract.NewLLMExtractor(eng, extractModel), cfg.Cache.Size)
	paths := memo.Paths(careers.NewLLMRecommender(eng, recommendModel), cfg.Cache.Size)

	return dialogue.NewOrchestrator(
		extract.New(facts, cfg.Timeouts.Extract),
		careers.NewGate(paths, cfg.Timeouts.Recommend),
	)
}

// newSpeech builds the speech service from whatever engines are configured.
func newSpeech(cfg config.Config) *speech.Service {
	var audio *proxy.Client
	if cfg.Engine.APIKey != "" {
		audio = proxy.NewClient(cfg.Engine.APIKey, proxy.WithBaseURL(cfg.Engine.OpenAIBaseURL))
	}

	var stt speech.Transcriber
	switch {
	case cfg.Speech.Transcriber == config.TranscriberDeepgram:
		stt = speech.NewDeepgramTranscriber(cfg.Speech.DeepgramAPIKey, "")
	case audio != nil:
		stt = speech.NewWhisperTranscriber(audio, cfg.Speech.WhisperModel)
	}

	var tts speech.Synthesizer
	if audio != nil {
		tts = speech.NewOpenAISynthesizer(audio, cfg.Speech.TTSModel, cfg.Speech.TTSVoice)
	}

	return speech.NewService(stt, tts, cfg.Timeouts.Transcribe, cfg.Timeouts.Synthesize)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "ivy version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.Detect(engine.DetectConfig{
		Provider:      cfg.Engine.Provider,
		OllamaBaseURL: cfg.Engine.OllamaBaseURL,
		OpenAIBaseURL: cfg.Engine.OpenAIBaseURL,
		APIKey:        cfg.Engine.APIKey,
	})
	if err != nil {
		return fmt.Errorf("detecting inference engine: %w", err)
	}
	extractModel, recommendModel := cfg.Engine.Models()
	if err := engine.EnsureReady(ctx, eng, []string{extractModel, recommendModel}, os.Stderr); err != nil {
		// The conversation still works on pattern rules alone.
		slog.Warn("inference engine not ready; free-form traits and paths disabled until it is", "error", err)
	}

	printStep("Opening session store in %s", cfg.Storage.DataDir)
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	voice := newSpeech(cfg)
	sessions := session.NewManager(store, newOrchestrator(cfg, eng), voice, session.Config{
		HistoryLimit: cfg.Session.HistoryLimit,
	})
	janitor := session.NewJanitor(sessions, cfg.Session.TTL, janitorPoll)

	handler := api.NewHandler(api.Deps{
		Sessions: sessions,
		Speech:   voice,
		Token:    cfg.Server.APIToken,
		Engine:   cfg.Engine.Provider,
	})
	if cfg.Server.APIToken == "" {
		printWarning("No API token configured; the HTTP API is unauthenticated")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "ivy listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		janitor.Run(gctx)
		return nil
	})

	if cfg.Server.MCPEnabled {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(api.MCPDeps{Sessions: sessions}))
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	eng, err := engine.Detect(engine.DetectConfig{
		Provider:      cfg.Engine.Provider,
		OllamaBaseURL: cfg.Engine.OllamaBaseURL,
		OpenAIBaseURL: cfg.Engine.OpenAIBaseURL,
		APIKey:        cfg.Engine.APIKey,
	})
	if err != nil {
		printStatus("Engine", "misconfigured: %v", err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		state := "not reachable"
		if eng.IsRunning(ctx) {
			state = "reachable"
		}
		printStatus("Engine", "%s (%s)", cfg.Engine.Provider, state)
	}

	extractModel, recommendModel := cfg.Engine.Models()
	printStatus("Extract model", "%s", extractModel)
	printStatus("Recommend model", "%s", recommendModel)
	printStatus("Transcriber", "%s", cfg.Speech.Transcriber)
	printStatus("Session TTL", "%s", cfg.Session.TTL)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
