package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Shelby3344/cardflow-sub001/internal/cache"
	"github.com/Shelby3344/cardflow-sub001/internal/config"
	"github.com/Shelby3344/cardflow-sub001/internal/observability"
	"github.com/Shelby3344/cardflow-sub001/internal/pricing"
	"github.com/Shelby3344/cardflow-sub001/internal/providers"
	speechsvc "github.com/Shelby3344/cardflow-sub001/internal/services/speech"
	"github.com/Shelby3344/cardflow-sub001/internal/storage/blob"
)

// Container aggregates runtime dependencies for handlers and services.
type Container struct {
	Config        *config.Config
	Redis         *redis.Client
	Cache         *cache.AudioCache
	Blob          blob.Store
	Providers     *providers.Registry
	Pricing       *pricing.Table
	Speech        *speechsvc.Service
	Observability *observability.Provider
}

// NewContainer builds a dependency container from the provided primitives.
// The Redis client is owned by the caller; everything else is constructed
// here once and reused for the process lifetime.
func NewContainer(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	obs, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	store, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("build blob store: %w", err)
	}

	registry, err := providers.NewRegistry(cfg.Providers, cfg.Speech)
	if err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}

	audioCache := cache.NewAudioCache(redisClient, cfg.Speech.CacheTTL)
	priceTable := pricing.NewTable(cfg.Speech.Pricing)

	return &Container{
		Config:        cfg,
		Redis:         redisClient,
		Cache:         audioCache,
		Blob:          store,
		Providers:     registry,
		Pricing:       priceTable,
		Speech:        speechsvc.NewService(audioCache, store, registry, priceTable, obs, cfg.Speech),
		Observability: obs,
	}, nil
}
