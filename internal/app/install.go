package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"bero-pm/internal/adapters"
	"bero-pm/internal/core"
	"bero-pm/internal/types"
)

const defaultInstallWorkers = 4

// resolvedProject is the outcome of the shared resolution pipeline: the
// plan, the per-(name, version) digests for the installer stage, and the
// paths the run touched.
type resolvedProject struct {
	Resolution core.Resolution
	Shasums    map[string]string
	Dir        string
	LockPath   string
}

// Install resolves the project's dependency graph, persists the rewritten
// manifest and the new lock, and extracts every planned package into the
// modules tree.
func (s Service) Install(ctx context.Context, req InstallRequest) (InstallResult, error) {
	project, err := s.resolveProject(ctx, req.Dir, req.Packages, req.SaveDev, req.Production, req.Registry)
	if err != nil {
		return InstallResult{}, err
	}

	plan := project.Resolution.Plan
	modules := filepath.Join(project.Dir, core.ModulesDir)
	workers := req.Concurrency
	if workers <= 0 {
		workers = defaultInstallWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for name, entry := range plan.TopLevel {
		dest := filepath.Join(modules, filepath.FromSlash(name))
		shasum := project.Shasums[name+"@"+entry.Version]
		g.Go(func() error {
			return s.Installer.Install(gctx, name, entry.URL, shasum, dest)
		})
	}
	for _, entry := range plan.Unsatisfied {
		dest := filepath.Join(modules, filepath.FromSlash(entry.ParentPath), core.ModulesDir, filepath.FromSlash(entry.Name))
		shasum := project.Shasums[entry.Name+"@"+entry.Version]
		g.Go(func() error {
			return s.Installer.Install(gctx, entry.Name, entry.URL, shasum, dest)
		})
	}
	if err := g.Wait(); err != nil {
		return InstallResult{}, err
	}

	log.Ctx(ctx).Info().
		Int("top_level", len(plan.TopLevel)).
		Int("nested", len(plan.Unsatisfied)).
		Msg("install completed")
	return InstallResult{
		TopLevel: len(plan.TopLevel),
		Nested:   len(plan.Unsatisfied),
		LockPath: project.LockPath,
	}, nil
}

// Resolve runs the resolution pipeline without installing anything. The
// lock and manifest are still persisted, so a later install can replay
// the run offline.
func (s Service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	project, err := s.resolveProject(ctx, req.Dir, nil, false, req.Production, req.Registry)
	if err != nil {
		return ResolveResult{}, err
	}
	return ResolveResult{
		Plan:     project.Resolution.Plan,
		LockPath: project.LockPath,
	}, nil
}

func (s Service) resolveProject(ctx context.Context, dir string, packages []string, saveDev bool, production bool, registry string) (resolvedProject, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	assert.NotEmpty(ctx, dir, "project directory must be set")

	manifestPath := filepath.Join(dir, adapters.DefaultManifestFile)
	manifest, err := s.Manifest.Load(manifestPath)
	if err != nil {
		return resolvedProject{}, err
	}
	for _, arg := range packages {
		name, rang, err := splitPackageArg(arg)
		if err != nil {
			return resolvedProject{}, err
		}
		if saveDev {
			if manifest.DevDependencies == nil {
				manifest.DevDependencies = map[string]string{}
			}
			manifest.DevDependencies[name] = rang
		} else {
			if manifest.Dependencies == nil {
				manifest.Dependencies = map[string]string{}
			}
			manifest.Dependencies[name] = rang
		}
	}
	if err := core.ValidateManifest(manifest); err != nil {
		return resolvedProject{}, err
	}

	lockPath := filepath.Join(dir, adapters.DefaultLockFile)
	oldLock, err := s.Lock.Read(lockPath)
	if err != nil {
		return resolvedProject{}, err
	}
	lockSet := core.NewLockSet(oldLock)
	resolver := core.NewResolver(s.NewRegistry(registry), lockSet)
	direct := core.DirectDependencies(manifest, production)
	resolution, err := resolver.Resolve(ctx, direct)
	if err != nil {
		return resolvedProject{}, err
	}

	applyRewrites(&manifest, resolution.Rewrites)
	if err := s.Manifest.Save(manifestPath, manifest); err != nil {
		return resolvedProject{}, err
	}
	entries := lockSet.Entries()
	if err := s.Lock.Write(lockPath, entries); err != nil {
		return resolvedProject{}, err
	}

	shasums := make(map[string]string, len(entries))
	for key, entry := range entries {
		name := key[:strings.LastIndex(key, "@")]
		shasums[name+"@"+entry.Version] = entry.Shasum
	}
	log.Ctx(ctx).Debug().
		Int("lock_entries", len(entries)).
		Str("lock", lockPath).
		Msg("lock written")
	return resolvedProject{
		Resolution: resolution,
		Shasums:    shasums,
		Dir:        dir,
		LockPath:   lockPath,
	}, nil
}

// applyRewrites replaces originally empty root ranges with the caret
// range of the version just resolved. A later run sees the caret range
// and leaves it unchanged.
func applyRewrites(manifest *types.ProjectManifest, rewrites map[string]string) {
	for name, caret := range rewrites {
		if rang, ok := manifest.Dependencies[name]; ok && rang == "" {
			manifest.Dependencies[name] = caret
		}
		if rang, ok := manifest.DevDependencies[name]; ok && rang == "" {
			manifest.DevDependencies[name] = caret
		}
	}
}

// splitPackageArg parses a positional "name" or "name@range" argument.
// Scoped names keep their leading @.
func splitPackageArg(arg string) (string, string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty package argument")
	}
	at := strings.LastIndex(arg, "@")
	if at <= 0 {
		return arg, "", nil
	}
	name := arg[:at]
	rang := arg[at+1:]
	if strings.TrimSpace(name) == "" {
		return "", "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid package argument: %s", arg))
	}
	return name, rang, nil
}
