package core

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"bero-pm/internal/types"
)

// DirectDependencies flattens the project manifest into the root demand
// set for resolution. Runtime dependencies win when a name appears in
// both maps; production mode drops devDependencies entirely.
func DirectDependencies(manifest types.ProjectManifest, production bool) map[string]string {
	direct := map[string]string{}
	if !production {
		for name, rang := range manifest.DevDependencies {
			direct[name] = rang
		}
	}
	for name, rang := range manifest.Dependencies {
		direct[name] = rang
	}
	return direct
}

// ValidateManifest rejects demands the resolver cannot act on before any
// network traffic happens. Empty ranges are valid: they mean "any
// version" and are rewritten to a caret range after resolution.
func ValidateManifest(manifest types.ProjectManifest) error {
	cache := newRangeCache()
	for _, deps := range []map[string]string{manifest.Dependencies, manifest.DevDependencies} {
		for name, rang := range deps {
			if strings.TrimSpace(name) == "" {
				return errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg("dependency name must not be empty")
			}
			if _, err := cache.rang(rang); err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("invalid range for %s: %q", name, rang)).
					WithCause(err)
			}
		}
	}
	return nil
}
