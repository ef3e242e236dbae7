// Package amocrm is a read-only client for the amoCRM v4 REST API.
// It covers the four list endpoints the lead report needs.
package amocrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"amocrm-leads/internal/circuitbreaker"
	"amocrm-leads/internal/common/errors"
	commonhttp "amocrm-leads/internal/common/http"
	"amocrm-leads/internal/common/logging"
	"amocrm-leads/internal/common/ratelimit"
)

const (
	contactsPath  = "/api/v4/contacts"
	usersPath     = "/api/v4/users"
	pipelinesPath = "/api/v4/leads/pipelines"
	leadsPath     = "/api/v4/leads"

	// DefaultPageLimit is the largest page the API accepts
	DefaultPageLimit = 250
	DefaultMaxPages  = 10
)

// Authorizer attaches credentials to an outbound request
type Authorizer interface {
	Authorize(req *http.Request) error
}

// Config for the API client
type Config struct {
	// BaseURL is the account root, e.g. https://acme.amocrm.ru
	BaseURL   string
	PageLimit int
	MaxPages  int
}

// Client performs authenticated GET requests against one account.
// Every request waits on the limiter and runs inside the circuit breaker.
type Client struct {
	baseURL        *url.URL
	pageLimit      int
	maxPages       int
	httpClient     *http.Client
	auth           Authorizer
	limiter        ratelimit.Limiter
	circuitBreaker *circuitbreaker.GoBreakerAdapter
	logger         logging.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLimiter sets the outbound rate limiter
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an API client for the account at config.BaseURL
func NewClient(config Config, auth Authorizer, opts ...Option) (*Client, error) {
	if auth == nil {
		return nil, errors.ValidationError("authorizer is required")
	}

	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.ValidationError(fmt.Sprintf("invalid base URL %q", config.BaseURL))
	}

	if config.PageLimit <= 0 || config.PageLimit > DefaultPageLimit {
		config.PageLimit = DefaultPageLimit
	}
	if config.MaxPages <= 0 {
		config.MaxPages = DefaultMaxPages
	}

	c := &Client{
		baseURL:    base,
		pageLimit:  config.PageLimit,
		maxPages:   config.MaxPages,
		httpClient: commonhttp.NewHTTPClientWithTimeout(30 * time.Second),
		auth:       auth,
		limiter:    ratelimit.Unlimited(),
		logger:     logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.WithFields(logging.Field{Key: "component", Value: "amocrm"})
	c.circuitBreaker = circuitbreaker.NewGoBreaker("amocrm-api", circuitbreaker.APIConfig, c.logger)

	return c, nil
}

// ListContacts returns every contact with its custom field values
func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	return listAll[Contact](ctx, c, contactsPath, "contacts", nil)
}

// ListUsers returns every user of the account
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	return listAll[User](ctx, c, usersPath, "users", nil)
}

// ListPipelines returns every pipeline with its statuses
func (c *Client) ListPipelines(ctx context.Context) ([]Pipeline, error) {
	return listAll[Pipeline](ctx, c, pipelinesPath, "pipelines", nil)
}

// ListLeads returns the leads matching query, ordered by ID ascending,
// with contact stubs embedded. An empty query matches every lead.
func (c *Client) ListLeads(ctx context.Context, query string) ([]Lead, error) {
	params := url.Values{}
	params.Set("order[id]", "asc")
	params.Set("with", "contacts")
	if query != "" {
		params.Set("query", query)
	}
	return listAll[Lead](ctx, c, leadsPath, "leads", params)
}

// listAll walks _links.next up to maxPages pages and concatenates the
// entries found under _embedded.<key>.
//
// A 204 on the first page is returned as an EmptyResultError; on later
// pages it ends the walk.
func listAll[T any](ctx context.Context, c *Client, path, key string, params url.Values) ([]T, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("limit", strconv.Itoa(c.pageLimit))

	next := c.resolve(path, params)
	var items []T

	for page := 1; next != "" && page <= c.maxPages; page++ {
		var resp listResponse
		if err := c.get(ctx, next, key, &resp); err != nil {
			if page > 1 && errors.IsEmpty(err) {
				break
			}
			return nil, err
		}

		raw, ok := resp.Embedded[key]
		if !ok {
			return nil, errors.DataIntegrityError(fmt.Sprintf("response has no _embedded.%s", key), nil).
				WithContext("url", next)
		}

		var pageItems []T
		if err := json.Unmarshal(raw, &pageItems); err != nil {
			return nil, errors.DataIntegrityError(fmt.Sprintf("failed to decode _embedded.%s", key), err).
				WithContext("url", next)
		}
		items = append(items, pageItems...)

		next = ""
		if href := resp.nextHref(); href != "" {
			if page == c.maxPages {
				c.logger.Warn("Page limit reached, remaining pages skipped",
					logging.Field{Key: "resource", Value: key},
					logging.Field{Key: "max_pages", Value: c.maxPages},
				)
				break
			}
			next = c.resolveHref(href)
		}
	}

	if items == nil {
		items = []T{}
	}
	return items, nil
}

// get performs one authenticated GET and decodes a 200 body into out.
// The response status decides the error type: 401 is an AuthError,
// 204 an EmptyResultError, any other non-2xx a TransportError.
func (c *Client) get(ctx context.Context, rawURL, resource string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.TransportError("rate limiter wait cancelled", err)
	}

	start := time.Now()

	return c.circuitBreaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return errors.InternalError("failed to create request", err)
		}
		req.Header.Set("Accept", "application/json")

		if err := c.auth.Authorize(req); err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error("Request failed", err, logging.Field{Key: "url", Value: rawURL})
			return errors.TransportError(fmt.Sprintf("GET %s failed", rawURL), err)
		}
		defer resp.Body.Close()

		fields := []logging.Field{
			{Key: "url", Value: rawURL},
			{Key: "status", Value: resp.StatusCode},
			{Key: "duration", Value: time.Since(start)},
		}

		switch {
		case resp.StatusCode == http.StatusNoContent:
			c.logger.Debug("Empty result", fields...)
			return errors.EmptyResultError(resource)
		case resp.StatusCode == http.StatusUnauthorized:
			err := errors.AuthError(fmt.Sprintf("GET %s unauthorized", rawURL)).WithCode("401")
			c.logger.Warn("Request unauthorized", fields...)
			return err
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := errors.TransportError(fmt.Sprintf("GET %s returned %s", rawURL, resp.Status), nil).
				WithCode(strconv.Itoa(resp.StatusCode)).
				WithContext("body", string(body))
			c.logger.Error("Request failed", err, fields...)
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.DataIntegrityError(fmt.Sprintf("failed to decode %s response", resource), err)
		}

		c.logger.Debug("Request succeeded", fields...)
		return nil
	})
}

func (c *Client) resolve(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = params.Encode()
	return u.String()
}

// resolveHref makes a relative next link absolute against the base URL
func (c *Client) resolveHref(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return c.baseURL.ResolveReference(ref).String()
}
