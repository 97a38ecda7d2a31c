package models

import "errors"

// Provider names form a closed set; the registry rejects anything else.
const (
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
)

// Sentinel error kinds for the synthesis pipeline. Adapters and the blob
// uploader wrap their failures with these so the orchestrator and HTTP layer
// can classify without knowing provider internals.
var (
	ErrSynthesisFailed = errors.New("speech synthesis failed")
	ErrStorageFailed   = errors.New("audio storage failed")
)

// Defaults for the ElevenLabs voice tunables. Shared between the adapter
// and cache-key canonicalization so equivalent requests land on one entry.
const (
	DefaultStability  = 0.5
	DefaultSimilarity = 0.75
)

// TunableOrDefault resolves a voice tunable: nil or out-of-range values
// fall back to def, in-range values pass through unchanged.
func TunableOrDefault(v *float64, def float64) float64 {
	if v == nil || *v < 0 || *v > 1 {
		return def
	}
	return *v
}

// SpeechRequest carries normalized synthesis parameters for one text segment.
type SpeechRequest struct {
	Text  string
	Voice string
	Speed float64

	// ElevenLabs voice tunables. Nil means "use the adapter default";
	// out-of-range values are also replaced with the default.
	Stability  *float64
	Similarity *float64
}

// Audio is a synthesized artifact. Ownership transfers to the uploader; no
// component holds the bytes past its own use.
type Audio struct {
	Bytes       []byte
	ContentType string
}
