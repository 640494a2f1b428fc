// Package galaxy is a client of the Galaxy workflow engine API.
package galaxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
	"github.com/eosc4cancer/cbiobridge/pkg/utils/retry"
)

const (
	apiKeyHeader = "x-api-key"

	// platform name reported to ConnectObserver.
	Platform = "galaxy"
)

var ErrUnauthorized = errors.New("galaxy: unauthorized")

// APIError is a non-2xx response from Galaxy.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("galaxy: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Logger receives messages from Client. echo.Logger satisfies this.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}

// ConnectObserver is notified of each state of connection attempts.
type ConnectObserver interface {
	ObserveConnect(platform string, state string)
}

type nopObserver struct{}

func (nopObserver) ObserveConnect(string, string) {}

// DefaultTimeout bounds each request to Galaxy when no client is given.
const DefaultTimeout = 2 * time.Minute

// Client is a session of Galaxy for an API key.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
	log    Logger
}

type Option func(*config)

type config struct {
	http     *http.Client
	log      Logger
	observer ConnectObserver
	backoff  func(retry.Policy) retry.Backoff
}

func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.http = c
		}
	}
}

func WithLogger(l Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.log = l
		}
	}
}

func WithConnectObserver(o ConnectObserver) Option {
	return func(cfg *config) {
		if o != nil {
			cfg.observer = o
		}
	}
}

// WithBackoff replaces the wait between connection attempts.
func WithBackoff(f func(retry.Policy) retry.Backoff) Option {
	return func(cfg *config) {
		cfg.backoff = f
	}
}

// Connect establishes a session with Galaxy.
//
// It asks Galaxy who the key belongs to. Connection level failures are retried by policy.
//
// # Returns
//
// - *Client: session
//
// - error: ErrUnauthorized when Galaxy rejects the key.
// *retry.ConnectionExhaustedError when Galaxy is not reachable.
// *APIError for other error responses.
func Connect(ctx context.Context, baseURL string, apiKey string, policy retry.Policy, opts ...Option) (*Client, error) {
	cfg := config{http: &http.Client{Timeout: DefaultTimeout}, log: nopLogger{}, observer: nopObserver{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, xe.Wrap(err)
	}
	c := &Client{base: base, apiKey: apiKey, http: cfg.http, log: cfg.log}

	cfg.log.Infof("connecting Galaxy at %s", baseURL)
	bounded := retry.NewBounded(
		policy, Retryable,
		retry.WithBackoff(cfg.backoff),
		retry.WithObserver(func(tr retry.Transition) {
			cfg.observer.ObserveConnect(Platform, tr.State.String())
			if tr.State == retry.Retrying {
				cfg.log.Debugf("Attempt %d failed, retrying in %s: %s", tr.Attempt, policy.Delay, tr.Err)
			}
		}),
	)
	if err := bounded.Run(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/whoami", nil, nil)
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// Retryable tells whether the error is a connection level failure.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apierr *APIError
	if errors.As(err, &apierr) || errors.Is(err, ErrUnauthorized) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	var operr *net.OpError
	return errors.As(err, &operr)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// do sends a request with a JSON body, and decodes the JSON response into out.
//
// body and out can be nil.
func (c *Client) do(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return xe.Wrap(err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return xe.Wrap(err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
	}
	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Method: method, Path: path,
			StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xe.WrapWithNote(fmt.Sprintf("decoding response of %s %s", method, path), err)
	}
	return nil
}
