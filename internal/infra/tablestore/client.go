// Package tablestore talks to a PostgREST-style HTTP table store and
// implements the entity repositories on top of it.
package tablestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"questionbank/internal/domain"
	"questionbank/internal/metrics"
)

const (
	// RESTPrefix is appended to the configured base URL.
	RESTPrefix = "/rest/v1"
	// DefaultTimeout applies to both connect and read.
	DefaultTimeout = 30 * time.Second

	snippetLen = 200
)

// Options configures a Client. Zero timeouts mean DefaultTimeout.
type Options struct {
	BaseURL        string
	APIKey         string
	Token          string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// PingTable is the resource used by Ping; "users" when empty.
	PingTable string
}

// Client issues requests against the table store and returns raw bodies.
type Client struct {
	base      string
	apiKey    string
	token     string
	pingTable string
	http      *http.Client
	log       zerolog.Logger
}

// NewClient builds a Client with its own transport.
func NewClient(opts Options, log zerolog.Logger) *Client {
	connect := opts.ConnectTimeout
	if connect <= 0 {
		connect = DefaultTimeout
	}
	read := opts.ReadTimeout
	if read <= 0 {
		read = DefaultTimeout
	}
	ping := opts.PingTable
	if ping == "" {
		ping = "users"
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		MaxIdleConnsPerHost:   4,
	}
	return &Client{
		base:      strings.TrimRight(opts.BaseURL, "/") + RESTPrefix,
		apiKey:    opts.APIKey,
		token:     opts.Token,
		pingTable: ping,
		http:      &http.Client{Transport: transport, Timeout: connect + read},
		log:       log,
	}
}

// Get fetches rows of resource matching q.
func (c *Client) Get(ctx context.Context, resource string, q *Query) (string, error) {
	return c.do(ctx, http.MethodGet, resource, q, nil)
}

// Post inserts body into resource and returns the created representation.
func (c *Client) Post(ctx context.Context, resource string, body []byte) (string, error) {
	return c.do(ctx, http.MethodPost, resource, nil, body)
}

// Patch updates the rows of resource matched by q.
func (c *Client) Patch(ctx context.Context, resource string, q *Query, body []byte) (string, error) {
	return c.do(ctx, http.MethodPatch, resource, q, body)
}

// Delete removes the rows of resource matched by q.
func (c *Client) Delete(ctx context.Context, resource string, q *Query) (string, error) {
	return c.do(ctx, http.MethodDelete, resource, q, nil)
}

// Ping checks that the store answers an authenticated read.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Get(ctx, c.pingTable, NewQuery().Limit(1))
	return err
}

func (c *Client) url(resource string, q *Query) string {
	u := c.base + "/" + strings.TrimLeft(resource, "/")
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (c *Client) do(ctx context.Context, method, resource string, q *Query, body []byte) (string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	target := c.url(resource, q)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", &domain.TransportError{Method: method, Resource: resource, Err: err}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	metrics.TableStoreRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		metrics.TableStoreRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		c.log.Warn().Err(err).Str("method", method).Str("url", target).Msg("table store request failed")
		return "", &domain.TransportError{Method: method, Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	text := string(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.TableStoreRequestsTotal.WithLabelValues(method, "http_error").Inc()
		if readErr != nil {
			text = fmt.Sprintf("unreadable body: %v", readErr)
		}
		c.log.Warn().
			Str("method", method).
			Str("url", target).
			Int("status", resp.StatusCode).
			Str("body", domain.Snippet(text, snippetLen)).
			Msg("table store returned error status")
		return "", &domain.TransportError{
			Method:     method,
			Resource:   resource,
			StatusCode: resp.StatusCode,
			Body:       text,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	if readErr != nil {
		metrics.TableStoreRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		return "", &domain.TransportError{Method: method, Resource: resource, StatusCode: resp.StatusCode, Err: readErr}
	}

	metrics.TableStoreRequestsTotal.WithLabelValues(method, "ok").Inc()
	c.log.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("took", elapsed).
		Msg("table store request")
	return text, nil
}
