// Package lcd reads chain state from Terra LCD REST endpoints. The client implements wasm.Querier,
// so strategies can be planned against a live chain exactly as the contract would see it.
package lcd

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "lcd").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l
}

const healthPath = "/cosmos/base/tendermint/v1beta1/node_info"

// Client talks to a primary LCD endpoint and fails over to backups when it stops answering.
type Client struct {
	httpClient     *http.Client
	primaryURL     string
	backupURLs     []string
	currentURL     string
	mu             sync.RWMutex
	healthChecker  *healthChecker
	failoverConfig FailoverConfig
	limiter        *rate.Limiter
}

// FailoverConfig controls retries and failover.
type FailoverConfig struct {
	// MaxRetries is the number of retries on the current endpoint before failing over.
	MaxRetries uint
	// RetryDelay is the first backoff interval, later ones grow exponentially.
	RetryDelay time.Duration
	// HealthCheckInterval is how often a failed primary is probed.
	HealthCheckInterval time.Duration
	// Timeout is the HTTP request timeout.
	Timeout time.Duration
	// RequestsPerSecond caps outgoing requests, retries included. Zero disables the limit.
	RequestsPerSecond float64
}

func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		Timeout:             10 * time.Second,
		RequestsPerSecond:   10,
	}
}

type healthChecker struct {
	client    *Client
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// errStatus is a non-200 answer. 4xx answers are not retried.
type errStatus struct {
	code int
	body string
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

// NewClient validates the endpoints and starts the health checker when backups are given.
func NewClient(primaryURL string, backupURLs []string, config FailoverConfig) (*Client, error) {
	if _, err := url.ParseRequestURI(primaryURL); err != nil {
		return nil, fmt.Errorf("invalid primary LCD url %q: %w", primaryURL, err)
	}
	validBackups := make([]string, 0, len(backupURLs))
	for _, u := range backupURLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Invalid backup URL, skipping")
			continue
		}
		validBackups = append(validBackups, u)
	}

	c := &Client{
		httpClient:     &http.Client{Timeout: config.Timeout},
		primaryURL:     primaryURL,
		backupURLs:     validBackups,
		currentURL:     primaryURL,
		failoverConfig: config,
	}
	if config.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	if len(validBackups) > 0 && config.HealthCheckInterval > 0 {
		c.healthChecker = &healthChecker{client: c, stopCh: make(chan struct{}), stoppedCh: make(chan struct{})}
		go c.healthChecker.run()
	}

	log.Info().Str("primary", primaryURL).Int("backups", len(validBackups)).Msg("LCD client initialized")
	return c, nil
}

func (h *healthChecker) run() {
	defer close(h.stoppedCh)
	ticker := time.NewTicker(h.client.failoverConfig.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.checkAndRestore()
		}
	}
}

// checkAndRestore moves back to the primary once it is healthy again.
func (h *healthChecker) checkAndRestore() {
	current := h.client.CurrentURL()
	if current == h.client.primaryURL {
		return
	}
	if h.client.isEndpointHealthy(context.Background(), h.client.primaryURL) {
		h.client.mu.Lock()
		h.client.currentURL = h.client.primaryURL
		h.client.mu.Unlock()
		log.Info().Str("url", h.client.primaryURL).Msg("Restored primary endpoint")
	}
}

// Close stops the health checker.
func (c *Client) Close() {
	if c.healthChecker != nil {
		close(c.healthChecker.stopCh)
		<-c.healthChecker.stoppedCh
		c.healthChecker = nil
	}
}

// CurrentURL is the endpoint requests currently go to.
func (c *Client) CurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentURL
}

// Healthy reports whether the current endpoint answers.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.isEndpointHealthy(ctx, c.CurrentURL())
}

func (c *Client) isEndpointHealthy(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", endpoint).Msg("Health check failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

// failover switches to the next healthy endpoint after the current one.
func (c *Client) failover(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := append([]string{c.primaryURL}, c.backupURLs...)
	currentIdx := 0
	for i, u := range all {
		if u == c.currentURL {
			currentIdx = i
			break
		}
	}
	for i := 1; i < len(all); i++ {
		next := all[(currentIdx+i)%len(all)]
		if c.isEndpointHealthy(ctx, next) {
			c.currentURL = next
			log.Info().Str("url", next).Msg("Failover to endpoint")
			return true
		}
	}
	log.Warn().Str("url", c.currentURL).Msg("All endpoints unhealthy, staying on current")
	return false
}

func (c *Client) get(ctx context.Context, base, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("lcd rate limit: %w", err))
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		statusErr := &errStatus{code: resp.StatusCode, body: string(body)}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}
	return body, nil
}

// doRequest runs GET path with exponential backoff on the current endpoint, then once more after failover.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.failoverConfig.RetryDelay
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return c.get(ctx, c.CurrentURL(), path)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.failoverConfig.MaxRetries+1))
	if err == nil {
		return body, nil
	}

	var status *errStatus
	if errors.As(err, &status) && status.code < 500 {
		return nil, err
	}
	if len(c.backupURLs) > 0 && ctx.Err() == nil && c.failover(ctx) {
		body, ferr := c.get(ctx, c.CurrentURL(), path)
		if ferr != nil {
			return nil, fmt.Errorf("failover request failed: %w (original: %w)", ferr, err)
		}
		return body, nil
	}
	return nil, fmt.Errorf("request failed after %d tries: %w", c.failoverConfig.MaxRetries+1, err)
}

func smartQueryPath(contractAddr string, msg []byte) string {
	return fmt.Sprintf("/cosmwasm/wasm/v1/contract/%s/smart/%s",
		url.PathEscape(contractAddr), url.PathEscape(base64.URLEncoding.EncodeToString(msg)))
}
