package adapters

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bero-pm/internal/types"
)

func sampleLock() map[string]types.LockEntry {
	return map[string]types.LockEntry{
		"react@^18.0.0": {
			Version: "18.2.0",
			URL:     "https://registry.test/react/-/react-18.2.0.tgz",
			Shasum:  "88a8b8bcbdb0d677869b4ca1e52f98fde9b455ef",
			Dependencies: map[string]string{
				"loose-envify": "^1.1.0",
			},
		},
		"loose-envify@^1.1.0": {
			Version: "1.4.0",
			URL:     "https://registry.test/loose-envify/-/loose-envify-1.4.0.tgz",
			Shasum:  "71ee51fa",
		},
		"left-pad@": {
			Version: "1.3.0",
			URL:     "https://registry.test/left-pad/-/left-pad-1.3.0.tgz",
			Shasum:  "5b8a3f7b",
		},
	}
}

func TestLockFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultLockFile)
	adapter := NewLockFileAdapter()

	want := sampleLock()
	require.NoError(t, adapter.Write(path, want))

	got, err := adapter.Read(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lock round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLockFileWriteIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	adapter := NewLockFileAdapter()

	first := filepath.Join(dir, "first.yml")
	second := filepath.Join(dir, "second.yml")
	require.NoError(t, adapter.Write(first, sampleLock()))
	require.NoError(t, adapter.Write(second, sampleLock()))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "identical entries must serialize byte-identically")
}

func TestLockFileKeysSorted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultLockFile)
	adapter := NewLockFileAdapter()
	require.NoError(t, adapter.Write(path, sampleLock()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	leftPad := indexOf(t, content, "left-pad@")
	looseEnvify := indexOf(t, content, "loose-envify@^1.1.0")
	react := indexOf(t, content, "react@^18.0.0")
	assert.Less(t, leftPad, looseEnvify)
	assert.Less(t, looseEnvify, react)
}

func TestLockFileAbsentIsNotAnError(t *testing.T) {
	adapter := NewLockFileAdapter()
	entries, err := adapter.Read(filepath.Join(t.TempDir(), DefaultLockFile))
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestLockFileCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultLockFile)
	require.NoError(t, os.WriteFile(path, []byte("{{{ not yaml"), 0644))

	adapter := NewLockFileAdapter()
	_, err := adapter.Read(path)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeDataLoss, errbuilder.CodeOf(err))
}

func TestLockFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultLockFile)
	adapter := NewLockFileAdapter()

	require.NoError(t, adapter.Write(path, sampleLock()))
	require.NoError(t, adapter.Write(path, map[string]types.LockEntry{
		"only@^1.0.0": {Version: "1.0.0", URL: "u", Shasum: "s"},
	}))

	got, err := adapter.Read(path)
	require.NoError(t, err)
	require.Len(t, got, 1)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".bero-pm-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files must not survive a write")
}

func indexOf(t *testing.T, haystack string, needle string) int {
	t.Helper()
	idx := strings.Index(haystack, needle)
	require.GreaterOrEqual(t, idx, 0, "expected %q in lock output", needle)
	return idx
}
