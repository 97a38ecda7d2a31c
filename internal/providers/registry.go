package providers

import (
	"fmt"
	"strings"

	elevenlabsadapter "github.com/Shelby3344/cardflow-sub001/internal/adapters/elevenlabs"
	openaiadapter "github.com/Shelby3344/cardflow-sub001/internal/adapters/openai"
	"github.com/Shelby3344/cardflow-sub001/internal/config"
	"github.com/Shelby3344/cardflow-sub001/internal/models"
)

// Registry holds the closed set of synthesis providers keyed by name. The
// orchestrator selects through this registry instead of comparing provider
// strings inline.
type Registry struct {
	synths  map[string]Synthesizer
	primary string
}

// NewRegistry builds adapters for every provider with a configured key.
// At least one key is required (enforced by config validation).
func NewRegistry(providerCfg config.ProviderConfig, speechCfg config.SpeechConfig) (*Registry, error) {
	synths := make(map[string]Synthesizer, 2)

	if strings.TrimSpace(providerCfg.OpenAIKey) != "" {
		adapter, err := openaiadapter.New(openaiadapter.Options{APIKey: providerCfg.OpenAIKey})
		if err != nil {
			return nil, fmt.Errorf("build openai adapter: %w", err)
		}
		synths[models.ProviderOpenAI] = adapter
	}
	if strings.TrimSpace(providerCfg.ElevenLabsKey) != "" {
		adapter, err := elevenlabsadapter.New(elevenlabsadapter.Options{
			APIKey:        providerCfg.ElevenLabsKey,
			MaxTextLength: speechCfg.MaxTextLength,
		})
		if err != nil {
			return nil, fmt.Errorf("build elevenlabs adapter: %w", err)
		}
		synths[models.ProviderElevenLabs] = adapter
	}

	if len(synths) == 0 {
		return nil, fmt.Errorf("no synthesis provider configured")
	}

	primary := models.ProviderOpenAI
	if _, ok := synths[primary]; !ok {
		primary = models.ProviderElevenLabs
	}
	return &Registry{synths: synths, primary: primary}, nil
}

// NewRegistryFromSynthesizers wires explicit implementations; used by tests.
func NewRegistryFromSynthesizers(primary string, synths map[string]Synthesizer) *Registry {
	return &Registry{synths: synths, primary: primary}
}

// Select returns the adapter for name, defaulting to the primary provider
// when name is empty. Unknown names are an error for the caller to map to a
// validation failure.
func (r *Registry) Select(name string) (Synthesizer, string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = r.primary
	}
	synth, ok := r.synths[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown or unconfigured provider %q", name)
	}
	return synth, name, nil
}

// Primary returns the default provider adapter.
func (r *Registry) Primary() (Synthesizer, string, error) {
	return r.Select(r.primary)
}
