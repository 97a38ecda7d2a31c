package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/Shelby3344/cardflow-sub001/internal/models"
)

const defaultVoice = "alloy"

// Options configure the OpenAI speech adapter.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Extra   []option.RequestOption
}

// Adapter wraps the official OpenAI SDK for speech synthesis. Voice and
// speed are the provider's native vocabulary and are forwarded as-is; the
// API enforces its own bounds.
type Adapter struct {
	client *openai.Client
	model  string
}

// New creates an OpenAI adapter using the provided API key and optional base URL.
func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai: api key required")
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if strings.TrimSpace(opts.BaseURL) != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")))
	}
	requestOpts = append(requestOpts, opts.Extra...)

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "tts-1"
	}

	client := openai.NewClient(requestOpts...)
	return &Adapter{client: &client, model: model}, nil
}

// Synthesize performs a speech request and returns the full audio payload.
func (a *Adapter) Synthesize(ctx context.Context, req models.SpeechRequest) (models.Audio, error) {
	input := strings.TrimSpace(req.Text)
	if input == "" {
		return models.Audio{}, fmt.Errorf("openai: input is required for speech synthesis: %w", models.ErrSynthesisFailed)
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = defaultVoice
	}

	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(a.model),
		Input:          input,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if req.Speed > 0 {
		params.Speed = param.NewOpt(req.Speed)
	}

	resp, err := a.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return models.Audio{}, fmt.Errorf("openai: %v: %w", err, models.ErrSynthesisFailed)
	}
	defer resp.Body.Close()
	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Audio{}, fmt.Errorf("openai: read response: %v: %w", err, models.ErrSynthesisFailed)
	}
	return models.Audio{Bytes: audioBytes, ContentType: "audio/mpeg"}, nil
}
