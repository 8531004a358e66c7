package ports

import (
	"context"

	"bero-pm/internal/types"
)

type RegistryPort interface {
	FetchManifest(ctx context.Context, name string) (types.VersionManifest, error)
}
