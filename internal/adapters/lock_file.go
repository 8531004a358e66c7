package adapters

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"bero-pm/internal/types"
)

// DefaultLockFile is the lock file name at the project root.
const DefaultLockFile = "bero-pm.yml"

type LockFileAdapter struct{}

func NewLockFileAdapter() LockFileAdapter {
	return LockFileAdapter{}
}

// Read loads the lock file. An absent file is not an error and yields an
// empty lock.
func (a LockFileAdapter) Read(path string) (map[string]types.LockEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read lock file").
			WithCause(err)
	}
	var entries map[string]types.LockEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg("corrupt lock file; delete " + DefaultLockFile + " and retry").
			WithCause(err)
	}
	return entries, nil
}

// Write serializes the entries with keys recursively sorted and
// atomically replaces the lock file. The output is a pure function of
// the entries, so identical plans produce byte-identical files.
func (a LockFileAdapter) Write(path string, entries map[string]types.LockEntry) error {
	data, err := yaml.Marshal(lockDocument(entries))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to serialize lock file").
			WithCause(err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bero-pm-*.yml")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create temporary lock file").
			WithCause(err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write lock file").
			WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to close lock file").
			WithCause(err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to set lock file permissions").
			WithCause(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to replace lock file").
			WithCause(err)
	}
	return nil
}

// lockDocument builds the serialized YAML form with an explicit ordered
// document rather than relying on live map iteration.
func lockDocument(entries map[string]types.LockEntry) *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		root.Content = append(root.Content, scalarNode(key), entryNode(entries[key]))
	}
	return root
}

func entryNode(entry types.LockEntry) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	node.Content = append(node.Content,
		scalarNode("version"), scalarNode(entry.Version),
		scalarNode("url"), scalarNode(entry.URL),
		scalarNode("shasum"), scalarNode(entry.Shasum),
	)
	if len(entry.Dependencies) > 0 {
		deps := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		names := make([]string, 0, len(entry.Dependencies))
		for name := range entry.Dependencies {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			deps.Content = append(deps.Content, scalarNode(name), scalarNode(entry.Dependencies[name]))
		}
		node.Content = append(node.Content, scalarNode("dependencies"), deps)
	}
	return node
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
