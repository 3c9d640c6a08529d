// Package client provides an HTTP client for the Syncthing REST API.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stselect/stselect/pkg/retry"
)

// APIKeyHeader carries the daemon's API key on every request.
const APIKeyHeader = "X-API-Key"

// maxErrorBody bounds how much of an error response is kept in APIError.
const maxErrorBody = 4096

// Observer receives per-request measurements. internal/metrics implements it.
type Observer interface {
	ObserveRequest(method, endpoint string, status int, duration time.Duration)
	ObserveRetry(endpoint string)
}

// Client talks to one Syncthing daemon.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	pollClient  *http.Client
	retryConfig retry.Config
	log         *zap.Logger
	observer    Observer

	mu     sync.RWMutex
	online bool
}

// Config holds client configuration.
type Config struct {
	Protocol string // http or https
	Host     string
	Port     int
	APIKey   string

	Timeout            time.Duration
	RetryConfig        retry.Config
	InsecureSkipVerify bool

	Logger   *zap.Logger
	Observer Observer
}

// BaseURL returns the REST root, e.g. http://127.0.0.1:8384/rest/.
func (cfg Config) BaseURL() string {
	return fmt.Sprintf("%s://%s/rest/", cfg.Protocol, net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
}

func (cfg *Config) setDefaults() {
	if cfg.Protocol == "" {
		cfg.Protocol = "http"
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8384
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}

// New creates a new client.
func New(cfg Config) *Client {
	cfg.setDefaults()

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if cfg.InsecureSkipVerify {
		// The daemon ships a self-signed certificate by default.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL: cfg.BaseURL(),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		// Long-polls are bounded by the daemon-side timeout parameter.
		pollClient: &http.Client{
			Transport: transport,
		},
		retryConfig: cfg.RetryConfig,
		log:         cfg.Logger,
		observer:    cfg.Observer,
		online:      true,
	}
}

// BaseURL returns the REST root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsOnline returns true if the daemon answered the last request.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			c.log.Info("syncthing daemon is reachable again", zap.String("url", c.baseURL))
		} else {
			c.log.Warn("syncthing daemon is unreachable", zap.String("url", c.baseURL))
		}
	}
	c.online = online
}

// Ping checks that the daemon is reachable and the API key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		Ping string `json:"ping"`
	}
	return c.get(ctx, "system/ping", nil, &resp)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return c.do(ctx, c.httpClient, http.MethodGet, endpoint, query, nil, out)
}

func (c *Client) post(ctx context.Context, endpoint string, query url.Values, body any) error {
	return c.do(ctx, c.httpClient, http.MethodPost, endpoint, query, body, nil)
}

// do issues one logical request. Transport failures are retried; every
// HTTP status is final.
func (c *Client) do(ctx context.Context, hc *http.Client, method, endpoint string, query url.Values, body any, out any) error {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", endpoint, err)
		}
	}

	cfg := c.retryConfig
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.log.Debug("retrying request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		if c.observer != nil {
			c.observer.ObserveRetry(endpoint)
		}
	}

	return retry.Do(ctx, cfg, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return err
		}
		req.Header.Set(APIKeyHeader, c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := hc.Do(req)
		if err != nil {
			c.observe(method, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.setOnline(false)
			return retry.Retryable(fmt.Errorf("%s %s: %w", method, endpoint, err))
		}
		defer resp.Body.Close()

		c.observe(method, endpoint, resp.StatusCode, time.Since(start))
		c.setOnline(true)
		c.log.Debug("request completed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)))

		return decodeResponse(method, endpoint, resp, out)
	})
}

func decodeResponse(method, endpoint string, resp *http.Response, out any) error {
	switch resp.StatusCode {
	case http.StatusOK:
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", endpoint, err)
		}
		return nil
	case http.StatusForbidden:
		return &AuthError{Endpoint: endpoint}
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:   method,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     string(bytes.TrimSpace(body)),
		}
	}
}

func (c *Client) observe(method, endpoint string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, endpoint, status, d)
	}
}

// absent reports whether err means the daemon answered 404.
func absent(err error) bool {
	return errors.Is(err, ErrNotFound)
}
