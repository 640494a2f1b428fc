// Package cache clears the cache of cBioPortal after its data is changed.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
	"github.com/eosc4cancer/cbiobridge/pkg/importer"
)

const apiKeyHeader = "X-API-KEY"

// DefaultTimeout bounds a clear request when no client is given.
const DefaultTimeout = time.Minute

var ErrCacheClear = errors.New("cache clear failed")

// CacheClearError tells that cBioPortal did not clear its cache.
type CacheClearError struct {
	// HTTP status code. 0 when no response is received.
	StatusCode int

	Detail string
}

func (e *CacheClearError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", ErrCacheClear, e.Detail)
	}
	return fmt.Sprintf("%s (status %d): %s", ErrCacheClear, e.StatusCode, e.Detail)
}

func (e *CacheClearError) Unwrap() error {
	return ErrCacheClear
}

// Invalidator clears the cache of cBioPortal.
type Invalidator interface {
	// Clear requests cache eviction, and returns the output of the request.
	//
	// error is *CacheClearError when cBioPortal refuses or is unreachable.
	Clear(ctx context.Context) (string, error)
}

// Observer is notified of each clear request.
type Observer interface {
	ObserveCacheClear(succeeded bool)
}

type nopObserver struct{}

func (nopObserver) ObserveCacheClear(bool) {}

func endpoint(portalURL string) string {
	return strings.TrimSuffix(portalURL, "/") + "/api/cache"
}

type HTTPInvalidator struct {
	portalURL string
	apiKey    string
	client    *http.Client
	observer  Observer
}

var _ Invalidator = &HTTPInvalidator{}

type Option func(*options)

type options struct {
	client   *http.Client
	observer Observer
}

// WithHTTPClient replaces the default client, which times out after DefaultTimeout.
// Only HTTPInvalidator uses this.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func apply(opts []Option) options {
	o := options{client: &http.Client{Timeout: DefaultTimeout}, observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewHTTP creates an Invalidator sending "DELETE <portalURL>/api/cache".
func NewHTTP(portalURL string, apiKey string, opts ...Option) *HTTPInvalidator {
	o := apply(opts)
	return &HTTPInvalidator{
		portalURL: portalURL,
		apiKey:    apiKey,
		client:    o.client,
		observer:  o.observer,
	}
}

func (h *HTTPInvalidator) Clear(ctx context.Context) (string, error) {
	out, err := h.clear(ctx)
	h.observer.ObserveCacheClear(err == nil)
	return out, err
}

func (h *HTTPInvalidator) clear(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint(h.portalURL), nil)
	if err != nil {
		return "", xe.Wrap(err)
	}
	req.Header.Set(apiKeyHeader, h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", &CacheClearError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CacheClearError{StatusCode: resp.StatusCode, Detail: err.Error()}
	}
	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		return "", &CacheClearError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
	}
	return string(body), nil
}

// CommandInvalidator sends the clear request by an external program, like curl.
type CommandInvalidator struct {
	portalURL string
	apiKey    string
	cmd       importer.Command
	observer  Observer
}

var _ Invalidator = &CommandInvalidator{}

// NewCommand creates an Invalidator running cmd with curl-compatible arguments.
func NewCommand(cmd importer.Command, portalURL string, apiKey string, opts ...Option) *CommandInvalidator {
	o := apply(opts)
	return &CommandInvalidator{
		portalURL: portalURL,
		apiKey:    apiKey,
		cmd:       cmd,
		observer:  o.observer,
	}
}

// Curl is the default program for CommandInvalidator.
func Curl() importer.Command {
	return importer.ExecCommand{Path: "curl"}
}

func (c *CommandInvalidator) Args() []string {
	return []string{
		"-sS", "-f",
		"-X", http.MethodDelete, endpoint(c.portalURL),
		"-H", apiKeyHeader + ": " + c.apiKey,
	}
}

func (c *CommandInvalidator) Clear(ctx context.Context) (string, error) {
	res, err := c.cmd.Run(ctx, c.Args())
	if err != nil {
		c.observer.ObserveCacheClear(false)
		return "", &CacheClearError{Detail: err.Error()}
	}
	if res.ExitCode != 0 {
		c.observer.ObserveCacheClear(false)
		return "", &CacheClearError{Detail: strings.TrimSpace(res.Stderr)}
	}
	c.observer.ObserveCacheClear(true)
	return res.Stdout, nil
}
