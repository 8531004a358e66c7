package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"bero-pm/internal/types"
)

// DefaultRegistry is the central registry queried when no override is
// configured.
const DefaultRegistry = "https://registry.npmjs.org"

const defaultRegistryTimeout = 30 * time.Second
const defaultRegistryRetries = 2
const defaultRegistryRetryDelay = 200 * time.Millisecond
const maxRegistryRetryDelay = 2 * time.Second

// RegistryHTTPAdapter fetches version manifests over HTTP. Manifests are
// memoized per package name for the adapter's lifetime, so resolving the
// same name under several ranges costs one request.
type RegistryHTTPAdapter struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration

	mu     sync.Mutex
	cached map[string]types.VersionManifest
}

func NewRegistryHTTPAdapter(baseURL string, timeoutSec int, retries int, retryDelayMs int) *RegistryHTTPAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultRegistry
	}
	timeout := defaultRegistryTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	retryCount := defaultRegistryRetries
	if retries >= 0 {
		retryCount = retries
	}
	retryDelay := defaultRegistryRetryDelay
	if retryDelayMs > 0 {
		retryDelay = time.Duration(retryDelayMs) * time.Millisecond
	}
	return &RegistryHTTPAdapter{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Timeout:    timeout,
		Retries:    retryCount,
		RetryDelay: retryDelay,
		cached:     map[string]types.VersionManifest{},
	}
}

func (a *RegistryHTTPAdapter) FetchManifest(ctx context.Context, name string) (types.VersionManifest, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package name is empty")
	}
	a.mu.Lock()
	if manifest, ok := a.cached[name]; ok {
		a.mu.Unlock()
		return manifest, nil
	}
	a.mu.Unlock()

	url := a.BaseURL + "/" + name
	delay := a.RetryDelay
	var lastErr error
	for attempt := 0; attempt <= a.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeUnavailable).
					WithMsg(fmt.Sprintf("registry request cancelled for %s", name)).
					WithCause(ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxRegistryRetryDelay {
				delay = maxRegistryRetryDelay
			}
		}
		manifest, retry, err := a.fetchOnce(ctx, url, name)
		if err == nil {
			a.mu.Lock()
			a.cached[name] = manifest
			a.mu.Unlock()
			return manifest, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
		log.Ctx(ctx).Debug().
			Str("package", name).
			Int("attempt", attempt+1).
			Msg("registry fetch retrying")
	}
	return nil, lastErr
}

func (a *RegistryHTTPAdapter) fetchOnce(ctx context.Context, url string, name string) (types.VersionManifest, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to build registry request for %s", name)).
			WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	client := &http.Client{Timeout: a.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, true, errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg(fmt.Sprintf("registry unreachable for %s", name)).
			WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package not found: %s", name))
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg(fmt.Sprintf("registry returned status %d for %s", resp.StatusCode, name))
	case resp.StatusCode != http.StatusOK:
		return nil, false, errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg(fmt.Sprintf("registry returned status %d for %s", resp.StatusCode, name))
	}

	var manifest types.VersionManifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("malformed registry manifest for %s", name)).
			WithCause(err)
	}
	return manifest, false, nil
}
