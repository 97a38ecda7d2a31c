package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shelby3344/cardflow-sub001/internal/cache"
	"github.com/Shelby3344/cardflow-sub001/internal/config"
	"github.com/Shelby3344/cardflow-sub001/internal/models"
	"github.com/Shelby3344/cardflow-sub001/internal/observability"
	"github.com/Shelby3344/cardflow-sub001/internal/pricing"
	"github.com/Shelby3344/cardflow-sub001/internal/providers"
	"github.com/Shelby3344/cardflow-sub001/internal/storage/blob"
)

// Service orchestrates the synthesis pipeline: derive key, check cache,
// synthesize, upload, cache. Strict ordering: no upload without a synthesis
// success, no cache write without an upload success, nothing cached on any
// failure. No retries; two concurrent misses on the same key may both do the
// work, and the last cache write wins.
type Service struct {
	cache    *cache.AudioCache
	store    blob.Store
	registry *providers.Registry
	pricing  *pricing.Table
	obs      *observability.Provider
	logger   *slog.Logger

	defaultSpeed float64
	defaultPause float64
}

func NewService(
	audioCache *cache.AudioCache,
	store blob.Store,
	registry *providers.Registry,
	priceTable *pricing.Table,
	obs *observability.Provider,
	cfg config.SpeechConfig,
) *Service {
	return &Service{
		cache:        audioCache,
		store:        store,
		registry:     registry,
		pricing:      priceTable,
		obs:          obs,
		logger:       slog.Default().With("component", "services.speech"),
		defaultSpeed: cfg.DefaultSpeed,
		defaultPause: cfg.DefaultPauseSecs,
	}
}

// TextRequest is a single-text synthesis request.
type TextRequest struct {
	Text       string
	Voice      string
	Speed      float64
	Provider   string
	Stability  *float64
	Similarity *float64
}

// TextResult references the stored audio for a text request.
type TextResult struct {
	AudioURL string
	Cached   bool
}

// CardRequest synthesizes both sides of a flashcard.
type CardRequest struct {
	Front         string
	Back          string
	PauseDuration float64
	Voice         string
	Speed         float64
}

// CardResult carries one URL per card side. The sides are not stitched into
// a single stream; PauseDuration is returned for the player to honor.
type CardResult struct {
	FrontAudio    string
	BackAudio     string
	PauseDuration float64
	Cached        bool
}

// cardCacheEntry is the serialized cache value for the card path.
type cardCacheEntry struct {
	FrontAudio    string  `json:"front_audio"`
	BackAudio     string  `json:"back_audio"`
	PauseDuration float64 `json:"pause_duration"`
}

// SynthesizeText handles the single-text operation.
func (s *Service) SynthesizeText(ctx context.Context, req TextRequest) (TextResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return TextResult{}, missingField("text")
	}
	synth, providerName, err := s.registry.Select(req.Provider)
	if err != nil {
		return TextResult{}, &ValidationError{Field: "provider", Reason: err.Error()}
	}
	speed := req.Speed
	if speed <= 0 {
		speed = s.defaultSpeed
	}

	// Tunables enter the key in canonical form, so a nil tunable and an
	// out-of-range one share the entry their common effective value produces.
	stability := models.TunableOrDefault(req.Stability, models.DefaultStability)
	similarity := models.TunableOrDefault(req.Similarity, models.DefaultSimilarity)

	key := deriveKey(keyNamespaceSpeech,
		req.Text, req.Voice, formatFloat(speed), providerName,
		formatFloat(stability), formatFloat(similarity),
	)
	if cached, ok := s.cache.Get(ctx, key); ok {
		s.obs.RecordCacheLookup(keyNamespaceSpeech, true)
		return TextResult{AudioURL: string(cached), Cached: true}, nil
	}
	s.obs.RecordCacheLookup(keyNamespaceSpeech, false)

	url, err := s.synthesizeAndStore(ctx, synth, providerName, models.SpeechRequest{
		Text:       req.Text,
		Voice:      req.Voice,
		Speed:      speed,
		Stability:  req.Stability,
		Similarity: req.Similarity,
	}, "tts/"+uuid.New().String()+".mp3")
	if err != nil {
		return TextResult{}, err
	}

	s.cache.Set(ctx, key, []byte(url))
	return TextResult{AudioURL: url, Cached: false}, nil
}

// SynthesizeCard handles the two-part card operation. Front and back are
// synthesized independently and sequentially via the primary provider; a
// failure on either side fails the whole request with nothing cached.
func (s *Service) SynthesizeCard(ctx context.Context, req CardRequest) (CardResult, error) {
	if strings.TrimSpace(req.Front) == "" {
		return CardResult{}, missingField("front")
	}
	if strings.TrimSpace(req.Back) == "" {
		return CardResult{}, missingField("back")
	}
	synth, providerName, err := s.registry.Primary()
	if err != nil {
		return CardResult{}, &ValidationError{Field: "provider", Reason: err.Error()}
	}
	speed := req.Speed
	if speed <= 0 {
		speed = s.defaultSpeed
	}
	pause := req.PauseDuration
	if pause <= 0 {
		pause = s.defaultPause
	}

	key := deriveKey(keyNamespaceCard, req.Front, req.Back, formatFloat(pause), req.Voice, formatFloat(speed))
	if cached, ok := s.cache.Get(ctx, key); ok {
		var entry cardCacheEntry
		if err := json.Unmarshal(cached, &entry); err == nil {
			s.obs.RecordCacheLookup(keyNamespaceCard, true)
			return CardResult{
				FrontAudio:    entry.FrontAudio,
				BackAudio:     entry.BackAudio,
				PauseDuration: entry.PauseDuration,
				Cached:        true,
			}, nil
		}
		s.logger.Warn("discarding undecodable card cache entry", "key", key)
	}
	s.obs.RecordCacheLookup(keyNamespaceCard, false)

	frontURL, err := s.synthesizeAndStore(ctx, synth, providerName, models.SpeechRequest{
		Text:  req.Front,
		Voice: req.Voice,
		Speed: speed,
	}, "card-front-"+uuid.New().String()+".mp3")
	if err != nil {
		return CardResult{}, err
	}
	backURL, err := s.synthesizeAndStore(ctx, synth, providerName, models.SpeechRequest{
		Text:  req.Back,
		Voice: req.Voice,
		Speed: speed,
	}, "card-back-"+uuid.New().String()+".mp3")
	if err != nil {
		return CardResult{}, err
	}

	entry := cardCacheEntry{FrontAudio: frontURL, BackAudio: backURL, PauseDuration: pause}
	if data, err := json.Marshal(entry); err == nil {
		s.cache.Set(ctx, key, data)
	}
	return CardResult{
		FrontAudio:    frontURL,
		BackAudio:     backURL,
		PauseDuration: pause,
		Cached:        false,
	}, nil
}

// synthesizeAndStore performs one provider call and persists the result
// under the given storage key, returning the public URL.
func (s *Service) synthesizeAndStore(
	ctx context.Context,
	synth providers.Synthesizer,
	providerName string,
	req models.SpeechRequest,
	storageKey string,
) (string, error) {
	start := time.Now()
	audio, err := synth.Synthesize(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		s.obs.RecordSynthesis(providerName, "error", elapsed)
		return "", err
	}
	s.obs.RecordSynthesis(providerName, "ok", elapsed)

	cost := s.pricing.Estimate(providerName, len(req.Text))
	s.obs.RecordSynthesisCost(providerName, cost)
	s.logger.Info("synthesized audio",
		"provider", providerName,
		"chars", len(req.Text),
		"bytes", len(audio.Bytes),
		"latency_ms", elapsed.Milliseconds(),
		"est_cost_usd", cost.String(),
	)

	if _, err := s.store.Put(ctx, storageKey, bytes.NewReader(audio.Bytes), blob.PutOptions{
		ContentType: audio.ContentType,
	}); err != nil {
		return "", fmt.Errorf("upload %s: %v: %w", storageKey, err, models.ErrStorageFailed)
	}
	return s.store.URL(storageKey), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
