package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Shelby3344/cardflow-sub001/internal/models"
)

// elevenLabsBaseURL is the only host the adapter ever calls. It is a fixed
// constant: the voice ID is the sole caller-influenced path segment, and it
// is gated below before being embedded in the request URL.
const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

const (
	defaultModelID = "eleven_multilingual_v2"

	// DefaultVoiceID is used whenever the supplied voice ID fails validation.
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 16 << 20
)

// voiceIDPattern is the format gate for voice identifiers. Format validation
// alone is not sufficient: a well-formed but unlisted ID is still untrusted,
// so membership in allowedVoices is checked independently.
var voiceIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{10,32}$`)

// allowedVoices is the fixed set of known-good premade voice IDs.
var allowedVoices = map[string]struct{}{
	"21m00Tcm4TlvDq8ikWAM": {}, // Rachel
	"AZnzlk1XvdvUeBnXmlld": {}, // Domi
	"EXAVITQu4vr4xnSDxMaL": {}, // Bella
	"ErXwobaYiN019PkySvjV": {}, // Antoni
	"MF3mGyEYCl7XYWbV9V6O": {}, // Elli
	"TxGEqnHWrfWFTfGW9XjX": {}, // Josh
	"VR6AewLTigWG4xSOukaG": {}, // Arnold
	"pNInz6obpgDQGcFmaJgB": {}, // Adam
	"yoZ06aMxZJJ28mfd3POQ": {}, // Sam
}

// Options configure the ElevenLabs adapter.
type Options struct {
	APIKey        string
	BaseURL       string // test override only; defaults to the fixed constant
	ModelID       string
	MaxTextLength int
	Timeout       time.Duration
}

// Adapter calls the ElevenLabs text-to-speech API over plain HTTP.
type Adapter struct {
	apiKey     string
	baseURL    string
	modelID    string
	maxTextLen int
	client     *http.Client
	logger     *slog.Logger
}

func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("elevenlabs: api key required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}
	modelID := strings.TrimSpace(opts.ModelID)
	if modelID == "" {
		modelID = defaultModelID
	}
	maxTextLen := opts.MaxTextLength
	if maxTextLen <= 0 {
		maxTextLen = 5000
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Adapter{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		modelID:    modelID,
		maxTextLen: maxTextLen,
		client:     &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "adapters.elevenlabs"),
	}, nil
}

type synthesisPayload struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to audio. Invalid voice IDs and out-of-range
// tunables are downgraded to defaults, never rejected; oversized text is
// silently truncated. Upstream failures are hard errors.
func (a *Adapter) Synthesize(ctx context.Context, req models.SpeechRequest) (models.Audio, error) {
	text := req.Text
	if strings.TrimSpace(text) == "" {
		return models.Audio{}, fmt.Errorf("elevenlabs: text is required: %w", models.ErrSynthesisFailed)
	}
	if runes := []rune(text); len(runes) > a.maxTextLen {
		text = string(runes[:a.maxTextLen])
	}

	voiceID := a.sanitizeVoiceID(req.Voice)

	payload := synthesisPayload{
		Text:    text,
		ModelID: a.modelID,
		VoiceSettings: voiceSettings{
			Stability:       models.TunableOrDefault(req.Stability, models.DefaultStability),
			SimilarityBoost: models.TunableOrDefault(req.Similarity, models.DefaultSimilarity),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Audio{}, fmt.Errorf("elevenlabs: marshal payload: %v: %w", err, models.ErrSynthesisFailed)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", a.baseURL, voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.Audio{}, fmt.Errorf("elevenlabs: create request: %v: %w", err, models.ErrSynthesisFailed)
	}
	httpReq.Header.Set("xi-api-key", a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return models.Audio{}, fmt.Errorf("elevenlabs: %v: %w", err, models.ErrSynthesisFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Audio{}, a.parseError(resp)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return models.Audio{}, fmt.Errorf("elevenlabs: read response: %v: %w", err, models.ErrSynthesisFailed)
	}
	if len(audio) > maxResponseBytes {
		return models.Audio{}, fmt.Errorf("elevenlabs: response exceeds %d bytes: %w", maxResponseBytes, models.ErrSynthesisFailed)
	}
	return models.Audio{Bytes: audio, ContentType: "audio/mpeg"}, nil
}

// sanitizeVoiceID gates the caller-supplied voice identifier before it is
// embedded in the outbound URL. Both checks must pass independently; a
// rejection is logged and downgraded to the default voice, never an error.
func (a *Adapter) sanitizeVoiceID(voiceID string) string {
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return DefaultVoiceID
	}
	if !voiceIDPattern.MatchString(voiceID) {
		a.logger.Warn("rejected malformed voice id", "voice_id", stripLineBreaks(voiceID))
		return DefaultVoiceID
	}
	if _, ok := allowedVoices[voiceID]; !ok {
		a.logger.Warn("rejected unlisted voice id", "voice_id", stripLineBreaks(voiceID))
		return DefaultVoiceID
	}
	return voiceID
}

func stripLineBreaks(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

func (a *Adapter) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}

	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Message != "" {
		message = errResp.Detail.Message
	}
	return fmt.Errorf("elevenlabs: upstream status %d: %s: %w", resp.StatusCode, message, models.ErrSynthesisFailed)
}
