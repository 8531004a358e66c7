package app

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"bero-pm/internal/adapters"
)

// Inspect summarizes the lock file on disk without resolving anything.
func (s Service) Inspect(req InspectRequest) (InspectResult, error) {
	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = "."
	}
	lockPath := filepath.Join(dir, adapters.DefaultLockFile)
	entries, err := s.Lock.Read(lockPath)
	if err != nil {
		return InspectResult{}, err
	}
	if entries == nil {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("lock file not found: " + lockPath)
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := InspectResult{LockPath: lockPath}
	for _, key := range keys {
		entry := entries[key]
		result.Entries = append(result.Entries, InspectEntry{
			Key:          key,
			Version:      entry.Version,
			URL:          entry.URL,
			Dependencies: len(entry.Dependencies),
		})
	}
	return result, nil
}
