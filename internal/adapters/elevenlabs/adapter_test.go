package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Shelby3344/cardflow-sub001/internal/models"
)

type capturedRequest struct {
	Path    string
	Payload synthesisPayload
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&captured.Payload)
		if handler != nil {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	t.Cleanup(server.Close)

	adapter, err := New(Options{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		MaxTextLength: 50,
	})
	require.NoError(t, err)
	return adapter, captured
}

func TestSynthesizeReturnsAudio(t *testing.T) {
	adapter, captured := newTestAdapter(t, nil)

	audio, err := adapter.Synthesize(context.Background(), models.SpeechRequest{
		Text:  "Hello world",
		Voice: DefaultVoiceID,
	})
	require.NoError(t, err)
	require.Equal(t, []byte("mp3-bytes"), audio.Bytes)
	require.Equal(t, "audio/mpeg", audio.ContentType)
	require.Equal(t, "/text-to-speech/"+DefaultVoiceID, captured.Path)
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	adapter, _ := newTestAdapter(t, nil)

	_, err := adapter.Synthesize(context.Background(), models.SpeechRequest{Text: "   "})
	require.ErrorIs(t, err, models.ErrSynthesisFailed)
}

func TestSynthesizeTruncatesOversizedText(t *testing.T) {
	adapter, captured := newTestAdapter(t, nil)

	long := strings.Repeat("a", 200)
	_, err := adapter.Synthesize(context.Background(), models.SpeechRequest{Text: long})
	require.NoError(t, err)
	require.Len(t, []rune(captured.Payload.Text), 50)
}

func TestSynthesizeDowngradesMalformedVoiceID(t *testing.T) {
	adapter, captured := newTestAdapter(t, nil)

	// Path-traversal shaped identifiers must never reach the outbound URL.
	_, err := adapter.Synthesize(context.Background(), models.SpeechRequest{
		Text:  "Hello",
		Voice: "../../admin/delete",
	})
	require.NoError(t, err)
	require.Equal(t, "/text-to-speech/"+DefaultVoiceID, captured.Path)
}

func TestSynthesizeDowngradesUnlistedVoiceID(t *testing.T) {
	adapter, captured := newTestAdapter(t, nil)

	// Well-formed but not in the allow-list: still untrusted.
	_, err := adapter.Synthesize(context.Background(), models.SpeechRequest{
		Text:  "Hello",
		Voice: "AAAABBBBCCCCDDDD1111",
	})
	require.NoError(t, err)
	require.Equal(t, "/text-to-speech/"+DefaultVoiceID, captured.Path)
}

func TestSynthesizeClampsTunables(t *testing.T) {
	adapter, captured := newTestAdapter(t, nil)

	outOfRange := 5.0
	negative := -0.2
	_, err := adapter.Synthesize(context.Background(), models.SpeechRequest{
		Text:       "Hello",
		Stability:  &outOfRange,
		Similarity: &negative,
	})
	require.NoError(t, err)
	require.Equal(t, models.DefaultStability, captured.Payload.VoiceSettings.Stability)
	require.Equal(t, models.DefaultSimilarity, captured.Payload.VoiceSettings.SimilarityBoost)
}

func TestSynthesizeKeepsInRangeTunables(t *testing.T) {
	adapter, captured := newTestAdapter(t, nil)

	stability := 0.3
	similarity := 0.9
	_, err := adapter.Synthesize(context.Background(), models.SpeechRequest{
		Text:       "Hello",
		Stability:  &stability,
		Similarity: &similarity,
	})
	require.NoError(t, err)
	require.Equal(t, 0.3, captured.Payload.VoiceSettings.Stability)
	require.Equal(t, 0.9, captured.Payload.VoiceSettings.SimilarityBoost)
}

func TestSynthesizeSurfacesUpstreamError(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":{"message":"quota exceeded","status":"quota_exceeded"}}`))
	})

	_, err := adapter.Synthesize(context.Background(), models.SpeechRequest{Text: "Hello"})
	require.ErrorIs(t, err, models.ErrSynthesisFailed)
	require.Contains(t, err.Error(), "quota exceeded")
}

func TestSynthesizeRejectsOversizedResponse(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(make([]byte, maxResponseBytes+1))
	})

	_, err := adapter.Synthesize(context.Background(), models.SpeechRequest{Text: "Hello"})
	require.ErrorIs(t, err, models.ErrSynthesisFailed)
	require.Contains(t, err.Error(), "exceeds")
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
