package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	semver "github.com/Masterminds/semver/v3"
	"github.com/ZanzyTHEbar/errbuilder-go"

	"bero-pm/internal/types"
)

// rangeCache memoizes parsed versions and range constraints so repeated
// satisfaction checks during a traversal reuse the same parse. Safe for
// concurrent use; sibling traversals share one cache per resolver.
type rangeCache struct {
	mu          sync.Mutex
	versions    map[string]*semver.Version
	constraints map[string]*semver.Constraints
}

func newRangeCache() *rangeCache {
	return &rangeCache{
		versions:    map[string]*semver.Version{},
		constraints: map[string]*semver.Constraints{},
	}
}

// version returns a parsed semantic version, caching the result.
func (c *rangeCache) version(value string) (*semver.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if parsed, ok := c.versions[value]; ok {
		return parsed, nil
	}
	parsed, err := semver.StrictNewVersion(value)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid semantic version: %q", value)).
			WithCause(err)
	}
	c.versions[value] = parsed
	return parsed, nil
}

// rang returns the parsed constraint set for a range string, or nil for
// the empty range, which matches every version.
func (c *rangeCache) rang(value string) (*semver.Constraints, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if parsed, ok := c.constraints[value]; ok {
		return parsed, nil
	}
	parsed, err := semver.NewConstraint(value)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid version range: %q", value)).
			WithCause(err)
	}
	c.constraints[value] = parsed
	return parsed, nil
}

// satisfies reports whether version meets rang under standard semver
// precedence. Pre-release handling is that of Masterminds/semver: a
// pre-release version can match only comparators that themselves name a
// pre-release, and that pre-release is not required to be on the same
// version triple.
func (c *rangeCache) satisfies(version string, rang string) (bool, error) {
	v, err := c.version(version)
	if err != nil {
		return false, err
	}
	constraint, err := c.rang(rang)
	if err != nil {
		return false, err
	}
	if constraint == nil {
		return true, nil
	}
	return constraint.Check(v), nil
}

// maxSatisfying picks the highest version among versions that satisfies
// rang. versions must be in the registry's ascending enumeration order:
// when two entries tie under precedence the later one is authoritative.
func (c *rangeCache) maxSatisfying(versions []string, rang string) (string, bool, error) {
	constraint, err := c.rang(rang)
	if err != nil {
		return "", false, err
	}
	var best *semver.Version
	var bestRaw string
	for _, raw := range versions {
		v, err := c.version(raw)
		if err != nil {
			return "", false, err
		}
		if constraint != nil && !constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) || v.Equal(best) {
			best = v
			bestRaw = raw
		}
	}
	if best == nil {
		return "", false, nil
	}
	return bestRaw, true, nil
}

// Satisfies reports whether version meets rang. The empty range matches
// every version.
func Satisfies(version string, rang string) (bool, error) {
	return newRangeCache().satisfies(version, rang)
}

// Caret computes the compatible-with range recorded for a root
// dependency that was originally unconstrained: ^MAJOR.MINOR.PATCH.
func Caret(version string) (string, error) {
	v, err := newRangeCache().version(version)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("^%d.%d.%d", v.Major(), v.Minor(), v.Patch()), nil
}

// SortedVersions enumerates a manifest's versions in ascending
// precedence order, matching the registry contract. Keys that do not
// parse as semantic versions sort last, lexically; maxSatisfying rejects
// them with a proper error if they are ever considered.
func SortedVersions(manifest types.VersionManifest) []string {
	type keyed struct {
		raw    string
		parsed *semver.Version
	}
	entries := make([]keyed, 0, len(manifest))
	for raw := range manifest {
		parsed, err := semver.StrictNewVersion(raw)
		if err != nil {
			parsed = nil
		}
		entries = append(entries, keyed{raw: raw, parsed: parsed})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.parsed == nil && b.parsed == nil:
			return a.raw < b.raw
		case a.parsed == nil:
			return false
		case b.parsed == nil:
			return true
		}
		if cmp := a.parsed.Compare(b.parsed); cmp != 0 {
			return cmp < 0
		}
		return a.raw < b.raw
	})
	out := make([]string, len(entries))
	for i, entry := range entries {
		out[i] = entry.raw
	}
	return out
}
