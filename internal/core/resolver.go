package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"bero-pm/internal/ports"
	"bero-pm/internal/types"
)

// ModulesDir is the per-level directory packages are extracted into.
const ModulesDir = "node_modules"

// dependencyFrame is one ancestor on the current traversal path. Frames
// are traversal-local: sibling descents each get their own copy of the
// stack and never observe each other's frames.
type dependencyFrame struct {
	Name         string
	Version      string
	Dependencies map[string]string
}

// Resolver walks a project's direct dependencies and their transitive
// closure, binding every name to a concrete version. Construct one per
// invocation; a Resolver is not reusable across runs.
//
// Sibling traversals race, so the first traversal to bind a name wins
// the top-level slot and the plan is deterministic only given a
// populated lock. Tests that need byte-stable output prime the lock
// first.
type Resolver struct {
	registry ports.RegistryPort
	lock     *LockSet
	cache    *rangeCache

	mu          sync.Mutex
	topLevel    map[string]types.TopLevelEntry
	unsatisfied []types.NestedEntry
}

// Resolution is the resolver output: the installation plan plus the
// caret ranges to write back for originally unconstrained root demands.
type Resolution struct {
	Plan     types.Plan
	Rewrites map[string]string
}

func NewResolver(registry ports.RegistryPort, lock *LockSet) *Resolver {
	return &Resolver{
		registry: registry,
		lock:     lock,
		cache:    newRangeCache(),
		topLevel: map[string]types.TopLevelEntry{},
	}
}

// Resolve builds the plan for the given direct demands and, as a side
// effect, populates the new lock. On the first fatal error outstanding
// traversals are cancelled and no partial plan is returned.
func (r *Resolver) Resolve(ctx context.Context, direct map[string]string) (Resolution, error) {
	if r.registry == nil || r.lock == nil {
		return Resolution{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("resolver requires registry and lock set")
	}

	rewrites := map[string]string{}
	var rewriteMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for name, rang := range direct {
		g.Go(func() error {
			matched, err := r.collectDeps(gctx, name, rang, nil)
			if err != nil {
				return err
			}
			if rang != "" {
				return nil
			}
			caret, err := Caret(matched)
			if err != nil {
				return err
			}
			rewriteMu.Lock()
			rewrites[name] = caret
			rewriteMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Resolution{}, err
	}

	plan := types.Plan{
		TopLevel:    r.topLevel,
		Unsatisfied: dedupeNested(r.unsatisfied),
	}
	log.Ctx(ctx).Debug().
		Int("top_level", len(plan.TopLevel)).
		Int("nested", len(plan.Unsatisfied)).
		Msg("resolution completed")
	return Resolution{Plan: plan, Rewrites: rewrites}, nil
}

// collectDeps resolves one demand and recurses into the chosen version's
// dependencies. It returns the matched version so root callers can
// rewrite originally unconstrained demands.
func (r *Resolver) collectDeps(ctx context.Context, name string, rang string, stack []dependencyFrame) (string, error) {
	manifest, locked := r.lock.GetItem(name, rang)
	if !locked {
		fetched, err := r.registry.FetchManifest(ctx, name)
		if err != nil {
			return "", err
		}
		manifest = fetched
	}

	versions := SortedVersions(manifest)
	matched, ok, err := r.cache.maxSatisfying(versions, rang)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("no matching version for %s@%s", name, rang))
	}
	meta := manifest[matched]

	if err := r.place(name, rang, matched, meta, stack); err != nil {
		return "", err
	}

	r.lock.UpdateOrCreate(LockKey(name, rang), types.LockEntry{
		Version:      matched,
		URL:          meta.Dist.Tarball,
		Shasum:       meta.Dist.Shasum,
		Dependencies: meta.Dependencies,
	})

	frame := dependencyFrame{
		Name:         name,
		Version:      matched,
		Dependencies: meta.Dependencies,
	}
	childStack := make([]dependencyFrame, 0, len(stack)+1)
	childStack = append(childStack, stack...)
	childStack = append(childStack, frame)

	g, gctx := errgroup.WithContext(ctx)
	for dep, depRange := range meta.Dependencies {
		if r.hasCycle(dep, depRange, childStack) {
			log.Ctx(ctx).Debug().
				Str("package", dep).
				Str("range", depRange).
				Msg("cycle detected, descent skipped")
			continue
		}
		g.Go(func() error {
			_, err := r.collectDeps(gctx, dep, depRange, childStack)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return matched, nil
}

// place applies the placement decision for a resolved demand. Exactly
// one of four things happens: the name binds top-level, a nested entry
// is appended, the demand is already covered and nothing is emitted, or
// a root demand incompatible with the bound copy fails as a conflict.
func (r *Resolver) place(name string, rang string, matched string, meta types.PackageMetadata, stack []dependencyFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, bound := r.topLevel[name]
	if !bound {
		r.topLevel[name] = types.TopLevelEntry{
			URL:     meta.Dist.Tarball,
			Version: matched,
		}
		return nil
	}

	compatible, err := r.cache.satisfies(current.Version, rang)
	if err != nil {
		return err
	}
	if compatible {
		conflict := r.checkStackDependencies(name, matched, stack)
		if conflict < 0 {
			return nil
		}
		// Nest under the ancestor two frames above the conflicting one
		// so the conflicting frame and everything beneath it find the
		// nested copy first via directory-ascent lookup. Clamped for
		// shallow stacks.
		start := conflict - 2
		if start < 0 {
			start = 0
		}
		names := make([]string, 0, len(stack)-start)
		for _, frame := range stack[start:] {
			names = append(names, frame.Name)
		}
		r.unsatisfied = append(r.unsatisfied, types.NestedEntry{
			Name:       name,
			ParentPath: strings.Join(names, "/"+ModulesDir+"/"),
			URL:        meta.Dist.Tarball,
			Version:    matched,
		})
		return nil
	}

	// Incompatible with the top-level copy: nest directly under the
	// immediate parent of the current demand. A root demand has no
	// parent to nest under, so losing the top-level race to an
	// incompatible transitive binding is a hard conflict.
	if len(stack) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("top-level conflict for %s: %s already bound, %s demanded at the root", name, current.Version, rang))
	}
	r.unsatisfied = append(r.unsatisfied, types.NestedEntry{
		Name:       name,
		ParentPath: stack[len(stack)-1].Name,
		URL:        meta.Dist.Tarball,
		Version:    matched,
	})
	return nil
}

// checkStackDependencies returns the lowest stack index whose frame
// demands name with a range the candidate version does not satisfy, or
// -1 when every frame is silent about name or satisfied by it.
func (r *Resolver) checkStackDependencies(name string, version string, stack []dependencyFrame) int {
	for i, frame := range stack {
		rang, ok := frame.Dependencies[name]
		if !ok {
			continue
		}
		satisfied, err := r.cache.satisfies(version, rang)
		if err != nil || satisfied {
			continue
		}
		return i
	}
	return -1
}

// hasCycle reports whether descending into dep would re-enter an
// ancestor already on the live path. An ancestor with the same name
// whose version satisfies the demanded range both terminates legitimate
// cycles and suppresses redundant descents.
func (r *Resolver) hasCycle(dep string, depRange string, stack []dependencyFrame) bool {
	for _, frame := range stack {
		if frame.Name != dep {
			continue
		}
		satisfied, err := r.cache.satisfies(frame.Version, depRange)
		if err == nil && satisfied {
			return true
		}
	}
	return false
}

// dedupeNested drops repeat pushes for an identical placement and
// orders the remainder deterministically for the installer stage.
func dedupeNested(entries []types.NestedEntry) []types.NestedEntry {
	type placement struct {
		name, parent, version string
	}
	seen := map[placement]struct{}{}
	out := make([]types.NestedEntry, 0, len(entries))
	for _, entry := range entries {
		key := placement{name: entry.Name, parent: entry.ParentPath, version: entry.Version}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ParentPath != out[j].ParentPath {
			return out[i].ParentPath < out[j].ParentPath
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}
