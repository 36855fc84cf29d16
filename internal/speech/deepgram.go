package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalambet/ivy/internal/logging"
)

// ErrNoTranscript is returned when the engine heard nothing.
var ErrNoTranscript = errors.New("no transcription found in response")

// DeepgramTranscriber uses Deepgram's pre-recorded API.
type DeepgramTranscriber struct {
	dg    *api.Client
	model string
}

// NewDeepgramTranscriber creates a transcriber. An empty apiKey makes the SDK
// read DEEPGRAM_API_KEY from the environment.
func NewDeepgramTranscriber(apiKey, model string) *DeepgramTranscriber {
	if model == "" {
		model = "nova-3"
	}
	var dg *api.Client
	if apiKey == "" {
		dg = api.New(client.NewRESTWithDefaults())
	} else {
		dg = api.New(client.NewREST(apiKey, &interfaces.ClientOptions{}))
	}
	return &DeepgramTranscriber{dg: dg, model: model}
}

func (d *DeepgramTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, span := otel.Tracer("speech").Start(ctx, "DeepgramTranscribe")
	defer span.End()
	span.SetAttributes(attribute.Int("audio.data.size", len(audio)))

	log := logging.FromContext(ctx)

	options := &interfaces.PreRecordedTranscriptionOptions{
		Punctuate:  true,
		Language:   "multi",
		Utterances: true,
		Model:      d.model,
	}

	res, err := d.dg.FromStream(ctx, bytes.NewReader(audio), options)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("deepgram transcription: %w", err)
	}

	if res != nil && res.Results != nil && len(res.Results.Channels) > 0 {
		ch := res.Results.Channels[0]
		if len(ch.Alternatives) > 0 {
			text := ch.Alternatives[0].Transcript
			span.AddEvent("transcribed", trace.WithAttributes(attribute.Int("transcription.length", len(text))))
			log.Debug("audio transcribed", slog.Int("chars", len(text)))
			return text, nil
		}
	}

	span.AddEvent("empty response")
	return "", ErrNoTranscript
}
