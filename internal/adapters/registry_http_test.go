package adapters

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bero-pm/internal/types"
)

func testManifest() types.VersionManifest {
	return types.VersionManifest{
		"1.0.0": {
			Dependencies: map[string]string{"dep": "^2.0.0"},
			Dist: types.PackageDist{
				Tarball: "https://registry.test/pkg/-/pkg-1.0.0.tgz",
				Shasum:  "0db2e2ca",
			},
		},
		"1.1.0": {
			Dist: types.PackageDist{
				Tarball: "https://registry.test/pkg/-/pkg-1.1.0.tgz",
				Shasum:  "d00df00d",
			},
		},
	}
}

func TestFetchManifest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pkg", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(testManifest()))
	}))
	defer server.Close()

	adapter := NewRegistryHTTPAdapter(server.URL, 5, 0, 1)
	got, err := adapter.FetchManifest(t.Context(), "pkg")
	require.NoError(t, err)
	if diff := cmp.Diff(testManifest(), got); diff != "" {
		t.Fatalf("unexpected manifest (-want +got):\n%s", diff)
	}
}

func TestFetchManifestMemoizes(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		require.NoError(t, json.NewEncoder(w).Encode(testManifest()))
	}))
	defer server.Close()

	adapter := NewRegistryHTTPAdapter(server.URL, 5, 0, 1)
	_, err := adapter.FetchManifest(t.Context(), "pkg")
	require.NoError(t, err)
	_, err = adapter.FetchManifest(t.Context(), "pkg")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchManifestNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewRegistryHTTPAdapter(server.URL, 5, 0, 1)
	_, err := adapter.FetchManifest(t.Context(), "missing")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}

func TestFetchManifestRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(testManifest()))
	}))
	defer server.Close()

	adapter := NewRegistryHTTPAdapter(server.URL, 5, 2, 1)
	_, err := adapter.FetchManifest(t.Context(), "pkg")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchManifestUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	adapter := NewRegistryHTTPAdapter(server.URL, 1, 1, 1)
	_, err := adapter.FetchManifest(t.Context(), "pkg")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeUnavailable, errbuilder.CodeOf(err))
}

func TestFetchManifestMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	adapter := NewRegistryHTTPAdapter(server.URL, 5, 0, 1)
	_, err := adapter.FetchManifest(t.Context(), "pkg")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
}

func TestFetchManifestEmptyName(t *testing.T) {
	adapter := NewRegistryHTTPAdapter("http://registry.invalid", 1, 0, 1)
	_, err := adapter.FetchManifest(t.Context(), " ")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}
