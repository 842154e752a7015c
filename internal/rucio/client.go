package rucio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/rucio-tools/internal/config"
	"github.com/yourorg/rucio-tools/internal/logging"
)

const userAgent = "rucio-tools"

// Client talks to the catalogue REST API. It is safe for concurrent use.
type Client struct {
	cfg  config.Rucio
	http *http.Client
	log  *zap.Logger

	mu    sync.Mutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New returns a client for cfg. Authentication happens lazily on the first call.
func New(cfg config.Rucio, opts ...Option) (*Client, error) {
	if cfg.Host == "" {
		return nil, ErrNoHost
	}
	cfg.Host = strings.TrimSuffix(cfg.Host, "/")
	if cfg.AuthHost == "" {
		cfg.AuthHost = cfg.Host
	}
	cfg.AuthHost = strings.TrimSuffix(cfg.AuthHost, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := &Client{cfg: cfg, token: cfg.Token}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	c.log = logging.OrNop(c.log).Named("rucio")
	return c, nil
}

// Authenticate obtains a token with the userpass method unless one is configured.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return nil
	}
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return fmt.Errorf("%w: no token and no username/password", ErrCannotAuthenticate)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.AuthHost+"/auth/userpass", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Rucio-Account", c.cfg.Account)
	req.Header.Set("X-Rucio-Username", c.cfg.Username)
	req.Header.Set("X-Rucio-Password", c.cfg.Password)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	tok := resp.Header.Get("X-Rucio-Auth-Token")
	if tok == "" {
		return fmt.Errorf("%w: empty token in response", ErrCannotAuthenticate)
	}
	c.token = tok
	c.log.Debug("authenticated", zap.String("account", c.cfg.Account))
	return nil
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

// GetRSE returns RSE properties.
func (c *Client) GetRSE(ctx context.Context, rse string) (RSEInfo, error) {
	var out rseResponse
	if err := c.do(ctx, http.MethodGet, "/rses/"+url.PathEscape(rse), nil, &out); err != nil {
		return RSEInfo{}, err
	}
	if out.RSE == "" {
		out.RSE = rse
	}
	return out.info(), nil
}

// GetMetadata returns size and checksums of a file DID.
func (c *Client) GetMetadata(ctx context.Context, scope, name string) (FileMeta, error) {
	var out FileMeta
	if err := c.do(ctx, http.MethodGet, didPath(scope, name)+"/meta", nil, &out); err != nil {
		return FileMeta{}, err
	}
	return out, nil
}

// AddDataset creates an open dataset.
func (c *Client) AddDataset(ctx context.Context, scope, name string) error {
	body := map[string]any{"type": "DATASET"}
	return c.do(ctx, http.MethodPost, didPath(scope, name), body, nil)
}

// AddReplicas registers files and their replicas on rse.
func (c *Client) AddReplicas(ctx context.Context, rse string, files []ReplicaFile) error {
	body := map[string]any{"rse": rse, "files": files}
	return c.do(ctx, http.MethodPost, "/replicas", body, nil)
}

// Attach adds dids to the collection scope:name.
func (c *Client) Attach(ctx context.Context, scope, name string, dids []DIDRef) error {
	body := map[string]any{"dids": dids}
	return c.do(ctx, http.MethodPost, didPath(scope, name)+"/dids", body, nil)
}

func didPath(scope, name string) string {
	return "/dids/" + url.PathEscape(scope) + "/" + url.PathEscape(name)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	tok, err := c.currentToken(ctx)
	if err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Host+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Rucio-Auth-Token", tok)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("request", zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}
