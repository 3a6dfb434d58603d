package v1

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"sigs.k8s.io/yaml"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/httputil"
	"github.com/leptonai/edgeprobe/pkg/log"
)

const (
	URLPathRegisterClient = "/v1/registerclient"
	URLPathAppInstList    = "/v1/getappinstlist"
)

var ErrNoCandidates = errors.New("no candidate cloudlets")

// Client talks to the discovery service.
type Client struct {
	endpoint   string
	httpClient *http.Client
	cache      *cache.Cache
	cacheTTL   time.Duration
}

// New creates a discovery client for endpoint ("host:port" or a full
// "https://host:port" URL; https is assumed when no scheme is given).
func New(endpoint string, opts ...OpOption) (*Client, error) {
	op := &Op{}
	if err := op.applyOpts(opts); err != nil {
		return nil, err
	}

	scheme := "https"
	if strings.HasPrefix(endpoint, "http://") {
		scheme = "http"
	}
	base, err := httputil.CreateURL(scheme, endpoint, "")
	if err != nil {
		return nil, fmt.Errorf("invalid discovery endpoint %q: %w", endpoint, err)
	}

	c := &Client{
		endpoint:   base,
		httpClient: op.httpClient,
		cacheTTL:   op.cacheTTL,
	}
	if op.cacheTTL > 0 {
		c.cache = cache.New(op.cacheTTL, 2*op.cacheTTL)
	}
	return c, nil
}

func createDefaultHTTPClient(timeout time.Duration, insecureSkipVerify bool) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: insecureSkipVerify, //nolint:gosec
			},
		},
	}
}

func (c *Client) RegisterClient(ctx context.Context, req *apiv1.RegisterClientRequest) (*apiv1.RegisterClientReply, error) {
	reply := &apiv1.RegisterClientReply{}
	if err := c.post(ctx, URLPathRegisterClient, req, reply); err != nil {
		return nil, err
	}
	if reply.Status != apiv1.RStatusSuccess {
		return nil, fmt.Errorf("register client failed with status %q", reply.Status)
	}
	if reply.SessionCookie == "" {
		return nil, errors.New("register client returned an empty session cookie")
	}
	return reply, nil
}

// GetAppInstList returns the candidate cloudlets near the request location.
// Replies are served from cache when a TTL was configured.
func (c *Client) GetAppInstList(ctx context.Context, req *apiv1.AppInstListRequest) (*apiv1.AppInstListReply, error) {
	key := req.CacheKey()
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			log.Logger.Debugw("app instance list served from cache", "carrier", req.CarrierName, "location", req.GpsLocation.String())
			return v.(*apiv1.AppInstListReply), nil
		}
	}

	reply := &apiv1.AppInstListReply{}
	if err := c.post(ctx, URLPathAppInstList, req, reply); err != nil {
		return nil, err
	}
	if reply.Status != apiv1.AIStatusSuccess {
		return nil, fmt.Errorf("get app instance list failed with status %q", reply.Status)
	}

	if c.cache != nil {
		c.cache.Set(key, reply, c.cacheTTL)
	}
	return reply, nil
}

func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// ReadAppInstList decodes an app instance list in JSON or YAML,
// e.g. a candidate file captured from discovery.
func ReadAppInstList(rd io.Reader) (*apiv1.AppInstListReply, error) {
	b, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	reply := &apiv1.AppInstListReply{}
	if err := yaml.Unmarshal(b, reply); err != nil {
		return nil, fmt.Errorf("failed to decode app instance list: %w", err)
	}
	if len(reply.Cloudlets) == 0 {
		return nil, ErrNoCandidates
	}
	return reply, nil
}
