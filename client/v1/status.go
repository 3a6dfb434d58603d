package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/leptonai/edgeprobe/pkg/httputil"
	"github.com/leptonai/edgeprobe/pkg/netutil/latency"
	"github.com/leptonai/edgeprobe/pkg/server"
)

var ErrServerNotReady = errors.New("server not ready, timeout waiting")

// CheckHealthz checks the status server of a running monitor at addr.
func CheckHealthz(ctx context.Context, addr string, opts ...OpOption) error {
	op := &Op{}
	if err := op.applyOpts(opts); err != nil {
		return err
	}

	u, err := httputil.CreateURL("http", addr, server.URLPathHealthz)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	exp, err := json.Marshal(server.DefaultHealthz)
	if err != nil {
		return fmt.Errorf("failed to marshal expected healthz response: %w", err)
	}
	return checkHealthz(op.httpClient, req, exp)
}

func checkHealthz(cli *http.Client, req *http.Request, exp []byte) error {
	resp, err := cli.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request to %s: %w", server.URLPathHealthz, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server not ready, response not 200")
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read healthz response: %w", err)
	}
	if !bytes.Equal(b, exp) {
		return fmt.Errorf("unexpected healthz response: %s", string(b))
	}
	return nil
}

// BlockUntilServerReady polls the healthz endpoint every second until it
// succeeds or ctx is done.
func BlockUntilServerReady(ctx context.Context, addr string, opts ...OpOption) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if err := CheckHealthz(ctx, addr, opts...); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ErrServerNotReady
		case <-ticker.C:
		}
	}
}

// GetSites fetches the current ranking from a running monitor, best first.
func GetSites(ctx context.Context, addr string, opts ...OpOption) (latency.Latencies, error) {
	op := &Op{}
	if err := op.applyOpts(opts); err != nil {
		return nil, err
	}

	u, err := httputil.CreateURL("http", addr, server.URLPathV1+server.URLPathSites)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if op.acceptYAML {
		req.Header.Set(server.RequestHeaderContentType, server.RequestHeaderYAML)
	}

	resp, err := op.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var lats latency.Latencies
	// yaml.Unmarshal also accepts JSON
	if err := yaml.Unmarshal(b, &lats); err != nil {
		return nil, fmt.Errorf("failed to decode sites: %w", err)
	}
	return lats, nil
}
