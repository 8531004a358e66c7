package ports

import "bero-pm/internal/types"

type ManifestStorePort interface {
	Load(path string) (types.ProjectManifest, error)
	Save(path string, manifest types.ProjectManifest) error
}
