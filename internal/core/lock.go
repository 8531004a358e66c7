package core

import (
	"sync"

	"bero-pm/internal/types"
)

// LockKey builds the lock map key for a demand. The range is recorded
// exactly as requested, so an unconstrained root request yields "name@".
func LockKey(name string, rang string) string {
	return name + "@" + rang
}

// LockSet carries the two lock maps for a single run: the old lock,
// read-only after load, and the new lock accumulated during resolution.
// Only the new lock is ever serialized.
type LockSet struct {
	mu  sync.Mutex
	old map[string]types.LockEntry
	acc map[string]types.LockEntry
}

func NewLockSet(old map[string]types.LockEntry) *LockSet {
	if old == nil {
		old = map[string]types.LockEntry{}
	}
	return &LockSet{
		old: old,
		acc: map[string]types.LockEntry{},
	}
}

// GetItem returns a synthetic single-version manifest for a demand
// pinned by the old lock. The synthetic form keeps the resolver's hot
// path uniform: a locked request and a fresh request differ only in
// which backend supplied the manifest.
func (s *LockSet) GetItem(name string, rang string) (types.VersionManifest, bool) {
	entry, ok := s.old[LockKey(name, rang)]
	if !ok {
		return nil, false
	}
	return types.VersionManifest{
		entry.Version: {
			Dependencies: entry.Dependencies,
			Dist: types.PackageDist{
				Tarball: entry.URL,
				Shasum:  entry.Shasum,
			},
		},
	}, true
}

// UpdateOrCreate merges entry into the new lock under key. Writes to
// distinct keys commute; on the same key the last writer wins per field,
// which is acceptable because a key uniquely identifies a demand.
func (s *LockSet) UpdateOrCreate(key string, entry types.LockEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.acc[key]
	if !ok {
		s.acc[key] = entry
		return
	}
	if entry.Version != "" {
		current.Version = entry.Version
	}
	if entry.URL != "" {
		current.URL = entry.URL
	}
	if entry.Shasum != "" {
		current.Shasum = entry.Shasum
	}
	if entry.Dependencies != nil {
		current.Dependencies = entry.Dependencies
	}
	s.acc[key] = current
}

// Entries returns a copy of the accumulated new lock.
func (s *LockSet) Entries() map[string]types.LockEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]types.LockEntry, len(s.acc))
	for key, entry := range s.acc {
		out[key] = entry
	}
	return out
}
