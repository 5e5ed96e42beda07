package completion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultProbeTimeout bounds a reachability check.
const DefaultProbeTimeout = 5 * time.Second

// Probe sends a GET to baseURL and returns the response status code. Any
// HTTP response counts as reachable; only transport failures are errors.
func Probe(ctx context.Context, client *http.Client, baseURL string, timeout time.Duration) (int, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, baseURL, nil)
	if err != nil {
		return 0, fmt.Errorf("completion: probe %s: %w", baseURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, classify(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
