package credentials

import (
	"context"
	"fmt"

	"github.com/sofmeright/edgefreight/src/config"
)

// Open builds the store selected by cfg.
func Open(ctx context.Context, cfg config.CredentialsConfig) (Store, error) {
	switch cfg.Store {
	case "", config.StoreEnv:
		return NewEnvStore(), nil
	case config.StoreFile:
		return NewFileStore(cfg.File)
	case config.StoreAWS:
		return NewAWSStore(ctx, cfg.AWSRegion, cfg.AWSPrefix)
	case config.StoreMemory:
		return NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("unknown credential store %q (supported: env, file, aws)", cfg.Store)
	}
}
