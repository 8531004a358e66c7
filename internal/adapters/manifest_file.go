package adapters

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"bero-pm/internal/types"
)

// DefaultManifestFile is the project manifest name at the project root.
const DefaultManifestFile = "package.json"

type ManifestFileAdapter struct{}

func NewManifestFileAdapter() ManifestFileAdapter {
	return ManifestFileAdapter{}
}

// Load reads the project manifest. An absent file yields an empty
// manifest so a fresh project can bootstrap via `install <package>`.
func (a ManifestFileAdapter) Load(path string) (types.ProjectManifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.ProjectManifest{}, nil
	}
	if err != nil {
		return types.ProjectManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read project manifest").
			WithCause(err)
	}
	var manifest types.ProjectManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return types.ProjectManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse project manifest").
			WithCause(err)
	}
	return manifest, nil
}

// Save writes the manifest with two-space indentation. Dependency maps
// serialize in sorted key order, which encoding/json guarantees for
// string-keyed maps.
func (a ManifestFileAdapter) Save(path string, manifest types.ProjectManifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to serialize project manifest").
			WithCause(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write project manifest").
			WithCause(err)
	}
	return nil
}
