// Package testutil provides shared test helpers for the e2e test
// packages.
package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bero-pm/internal/types"
)

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// Package describes one published version served by a fake registry.
type Package struct {
	Name         string
	Version      string
	Dependencies map[string]string
	Files        map[string]string
}

// StartRegistry serves version manifests at /{name} and tarballs at
// /tarballs/{name}-{version}.tgz, with shasums computed over the real
// archive bytes so digest verification works end to end.
func StartRegistry(t *testing.T, packages []Package) *httptest.Server {
	t.Helper()

	tarballs := map[string][]byte{}
	shasums := map[string]string{}
	for _, pkg := range packages {
		files := pkg.Files
		if files == nil {
			files = map[string]string{
				"package/package.json": fmt.Sprintf(`{"name":%q,"version":%q}`, pkg.Name, pkg.Version),
			}
		}
		data := buildTarball(t, files)
		key := pkg.Name + "-" + pkg.Version
		tarballs[key] = data
		sum := sha1.Sum(data)
		shasums[key] = hex.EncodeToString(sum[:])
	}

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key, ok := strings.CutPrefix(r.URL.Path, "/tarballs/"); ok {
			key = strings.TrimSuffix(key, ".tgz")
			data, ok := tarballs[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(data)
			return
		}

		name := strings.TrimPrefix(r.URL.Path, "/")
		manifest := types.VersionManifest{}
		for _, pkg := range packages {
			if pkg.Name != name {
				continue
			}
			key := pkg.Name + "-" + pkg.Version
			manifest[pkg.Version] = types.PackageMetadata{
				Dependencies: pkg.Dependencies,
				Dist: types.PackageDist{
					Tarball: server.URL + "/tarballs/" + key + ".tgz",
					Shasum:  shasums[key],
				},
			}
		}
		if len(manifest) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(manifest))
	}))
	t.Cleanup(server.Close)
	return server
}

func buildTarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}
