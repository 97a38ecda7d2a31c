package providers

import (
	"context"

	"github.com/Shelby3344/cardflow-sub001/internal/models"
)

// Synthesizer converts a text segment into audio bytes. Implementations
// validate their own inputs and wrap every failure (network error, non-2xx,
// timeout, oversize response) with models.ErrSynthesisFailed. No adapter
// retries; retry policy belongs to callers of the HTTP surface.
type Synthesizer interface {
	Synthesize(ctx context.Context, req models.SpeechRequest) (models.Audio, error)
}
