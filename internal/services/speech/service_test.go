package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Shelby3344/cardflow-sub001/internal/cache"
	"github.com/Shelby3344/cardflow-sub001/internal/config"
	"github.com/Shelby3344/cardflow-sub001/internal/models"
	"github.com/Shelby3344/cardflow-sub001/internal/pricing"
	"github.com/Shelby3344/cardflow-sub001/internal/providers"
	"github.com/Shelby3344/cardflow-sub001/internal/storage/blob"
)

type fakeSynth struct {
	calls atomic.Int64
	fail  bool
}

func (f *fakeSynth) Synthesize(ctx context.Context, req models.SpeechRequest) (models.Audio, error) {
	f.calls.Add(1)
	if f.fail {
		return models.Audio{}, fmt.Errorf("provider down: %w", models.ErrSynthesisFailed)
	}
	return models.Audio{Bytes: []byte("audio:" + req.Text), ContentType: "audio/mpeg"}, nil
}

type fakeStore struct {
	puts []string
	fail bool
}

func (f *fakeStore) Put(ctx context.Context, key string, body io.Reader, opts blob.PutOptions) (blob.ObjectInfo, error) {
	if f.fail {
		return blob.ObjectInfo{}, errors.New("bucket unavailable")
	}
	f.puts = append(f.puts, key)
	return blob.ObjectInfo{Key: key, ContentType: opts.ContentType}, nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, blob.ObjectInfo, error) {
	return nil, blob.ObjectInfo{}, blob.ErrNotFound
}

func (f *fakeStore) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeStore) URL(key string) string {
	return "https://cdn.example.com/" + key
}

type harness struct {
	svc    *Service
	synth  *fakeSynth
	store  *fakeStore
	server *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	synth := &fakeSynth{}
	store := &fakeStore{}
	registry := providers.NewRegistryFromSynthesizers(models.ProviderOpenAI, map[string]providers.Synthesizer{
		models.ProviderOpenAI: synth,
	})
	svc := NewService(
		cache.NewAudioCache(client, time.Hour),
		store,
		registry,
		pricing.NewTable(config.PricingConfig{}),
		nil,
		config.SpeechConfig{DefaultSpeed: 1.0, DefaultPauseSecs: 5},
	)
	return &harness{svc: svc, synth: synth, store: store, server: server}
}

func TestSynthesizeTextCachesSecondCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := TextRequest{Text: "Hello", Voice: "alloy", Speed: 1.0, Provider: "openai"}

	first, err := h.svc.SynthesizeText(ctx, req)
	require.NoError(t, err)
	require.False(t, first.Cached)
	require.Equal(t, int64(1), h.synth.calls.Load())
	require.Len(t, h.store.puts, 1)

	second, err := h.svc.SynthesizeText(ctx, req)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, first.AudioURL, second.AudioURL)
	require.Equal(t, int64(1), h.synth.calls.Load(), "cache hit must not call the provider")
	require.Len(t, h.store.puts, 1, "cache hit must not upload")
}

func TestSynthesizeTextMissingTextHasNoSideEffects(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.SynthesizeText(context.Background(), TextRequest{Text: "  "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "text", verr.Field)
	require.Zero(t, h.synth.calls.Load())
	require.Empty(t, h.store.puts)
	require.Empty(t, h.server.Keys())
}

func TestSynthesizeTextUnknownProviderIsValidationError(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.SynthesizeText(context.Background(), TextRequest{Text: "Hello", Provider: "azure"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Zero(t, h.synth.calls.Load())
}

func TestSynthesizeTextProviderFailureCachesNothing(t *testing.T) {
	h := newHarness(t)
	h.synth.fail = true

	_, err := h.svc.SynthesizeText(context.Background(), TextRequest{Text: "Hello"})
	require.ErrorIs(t, err, models.ErrSynthesisFailed)
	require.Empty(t, h.store.puts, "failed synthesis must not upload")
	require.Empty(t, h.server.Keys(), "failed synthesis must not cache")
}

func TestSynthesizeTextUploadFailureCachesNothing(t *testing.T) {
	h := newHarness(t)
	h.store.fail = true

	_, err := h.svc.SynthesizeText(context.Background(), TextRequest{Text: "Hello"})
	require.ErrorIs(t, err, models.ErrStorageFailed)
	require.Empty(t, h.server.Keys())
}

func TestSynthesizeTextCacheOutageDegradesToMiss(t *testing.T) {
	h := newHarness(t)
	h.server.Close()

	result, err := h.svc.SynthesizeText(context.Background(), TextRequest{Text: "Hello"})
	require.NoError(t, err, "cache outage must never surface")
	require.False(t, result.Cached)
	require.NotEmpty(t, result.AudioURL)
	require.Equal(t, int64(1), h.synth.calls.Load())
}

func TestSynthesizeTextDistinctRequestsGetDistinctKeys(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SynthesizeText(ctx, TextRequest{Text: "Hello", Voice: "alloy"})
	require.NoError(t, err)
	result, err := h.svc.SynthesizeText(ctx, TextRequest{Text: "Hello", Voice: "echo"})
	require.NoError(t, err)
	require.False(t, result.Cached, "differing voice must not hit the other entry")
	require.Equal(t, int64(2), h.synth.calls.Load())
}

func TestSynthesizeTextDistinctTunablesGetDistinctKeys(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	low := 0.1
	high := 0.9
	_, err := h.svc.SynthesizeText(ctx, TextRequest{Text: "Hello", Stability: &low})
	require.NoError(t, err)
	result, err := h.svc.SynthesizeText(ctx, TextRequest{Text: "Hello", Stability: &high})
	require.NoError(t, err)
	require.False(t, result.Cached, "request with different stability must not hit the other entry")
	require.Equal(t, int64(2), h.synth.calls.Load())
}

func TestSynthesizeTextCanonicalTunablesShareAnEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Out-of-range collapses to the default, same as an absent tunable.
	outOfRange := 5.0
	_, err := h.svc.SynthesizeText(ctx, TextRequest{Text: "Hello"})
	require.NoError(t, err)
	result, err := h.svc.SynthesizeText(ctx, TextRequest{Text: "Hello", Stability: &outOfRange})
	require.NoError(t, err)
	require.True(t, result.Cached)
	require.Equal(t, int64(1), h.synth.calls.Load())
}

func TestSynthesizeCardProducesTwoUploads(t *testing.T) {
	h := newHarness(t)

	result, err := h.svc.SynthesizeCard(context.Background(), CardRequest{Front: "Q", Back: "A"})
	require.NoError(t, err)
	require.False(t, result.Cached)
	require.NotEqual(t, result.FrontAudio, result.BackAudio)
	require.Equal(t, float64(5), result.PauseDuration)
	require.Len(t, h.store.puts, 2)
	require.True(t, strings.HasPrefix(h.store.puts[0], "card-front-"))
	require.True(t, strings.HasPrefix(h.store.puts[1], "card-back-"))
}

func TestSynthesizeCardSecondCallHitsCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := CardRequest{Front: "Q", Back: "A", PauseDuration: 3}

	first, err := h.svc.SynthesizeCard(ctx, req)
	require.NoError(t, err)
	second, err := h.svc.SynthesizeCard(ctx, req)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, first.FrontAudio, second.FrontAudio)
	require.Equal(t, first.BackAudio, second.BackAudio)
	require.Equal(t, float64(3), second.PauseDuration)
	require.Equal(t, int64(2), h.synth.calls.Load())
}

func TestSynthesizeCardBackFailureIsFullFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// First side succeeds, then the provider starts failing: the request
	// must fail as a whole and cache nothing.
	failing := &flakySynth{failAfter: 1}
	h.svc.registry = providers.NewRegistryFromSynthesizers(models.ProviderOpenAI, map[string]providers.Synthesizer{
		models.ProviderOpenAI: failing,
	})

	_, err := h.svc.SynthesizeCard(ctx, CardRequest{Front: "Q", Back: "A"})
	require.ErrorIs(t, err, models.ErrSynthesisFailed)
	require.Empty(t, h.server.Keys(), "partial card success must not cache")
}

func TestSynthesizeCardMissingSidesAreValidationErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SynthesizeCard(ctx, CardRequest{Back: "A"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "front", verr.Field)

	_, err = h.svc.SynthesizeCard(ctx, CardRequest{Front: "Q"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "back", verr.Field)
	require.Zero(t, h.synth.calls.Load())
}

type flakySynth struct {
	calls     int
	failAfter int
}

func (f *flakySynth) Synthesize(ctx context.Context, req models.SpeechRequest) (models.Audio, error) {
	f.calls++
	if f.calls > f.failAfter {
		return models.Audio{}, fmt.Errorf("provider down: %w", models.ErrSynthesisFailed)
	}
	return models.Audio{Bytes: []byte("audio"), ContentType: "audio/mpeg"}, nil
}
