// Package oauth2 keeps the CRM access token valid for the lifetime of the process.
//
// The Manager exchanges a one-time authorization code for a token pair, refreshes
// it once it expires and persists every new pair through a TokenStorage so a
// restart can pick up where the previous process left off.
package oauth2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"amocrm-leads/internal/circuitbreaker"
	"amocrm-leads/internal/common/errors"
	commonhttp "amocrm-leads/internal/common/http"
	"amocrm-leads/internal/common/logging"
	"amocrm-leads/internal/common/ratelimit"
)

const tokenPath = "/oauth2/access_token"

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// State is the authorization state of a Manager
type State int

const (
	// StateUnauthenticated means no usable credentials are known
	StateUnauthenticated State = iota
	// StateAuthenticated means the access token is within its lifetime
	StateAuthenticated
	// StateExpired means credentials exist but the access token must be refreshed
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// TokenResponse is the body returned by the token endpoint
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Credentials is the persisted token pair.
// CreatedAt is the unix time (seconds) the pair was received.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	CreatedAt    int64  `json:"created_at"`
}

// ExpiresAt returns the moment the access token stops being valid
func (c *Credentials) ExpiresAt() time.Time {
	return time.Unix(c.CreatedAt+c.ExpiresIn, 0)
}

// IsExpired reports whether now - created_at has reached expires_in
func (c *Credentials) IsExpired(now time.Time) bool {
	return now.Unix()-c.CreatedAt >= c.ExpiresIn
}

// Config identifies the integration registered in the CRM account
type Config struct {
	// BaseURL is the account root, e.g. https://acme.amocrm.ru
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// AuthCode is the one-time code used when no refresh token is on file
	AuthCode string
}

// TokenURL returns the token endpoint for the account
func (c Config) TokenURL() string {
	return strings.TrimRight(c.BaseURL, "/") + tokenPath
}

// Validate checks the fields every token request needs
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.ValidationError("base_url is required")
	case c.ClientID == "":
		return errors.ValidationError("client_id is required")
	case c.ClientSecret == "":
		return errors.ValidationError("client_secret is required")
	case c.RedirectURI == "":
		return errors.ValidationError("redirect_uri is required")
	}
	return nil
}

// TokenStorage persists the single credentials set of the account
type TokenStorage interface {
	// SaveCredentials overwrites any previously stored credentials
	SaveCredentials(ctx context.Context, creds *Credentials) error
	// LoadCredentials returns nil without error when nothing is stored
	LoadCredentials(ctx context.Context) (*Credentials, error)
	DeleteCredentials(ctx context.Context) error
}

// Manager owns the token state machine.
// All methods are safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	config Config
	state  State
	creds  *Credentials
	// loaded is set once storage has been consulted
	loaded       bool
	authCodeUsed bool

	httpClient     *http.Client
	storage        TokenStorage
	circuitBreaker *circuitbreaker.GoBreakerAdapter
	limiter        ratelimit.Limiter
	logger         logging.Logger
	now            func() time.Time
}

// Option customizes a Manager
type Option func(*Manager)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = client
	}
}

// WithLimiter shares an outbound rate limiter with the Manager
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(m *Manager) {
		m.limiter = limiter
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager in the unauthenticated state.
// Stored credentials are read lazily by the first EnsureAuthorized call.
func NewManager(config Config, storage TokenStorage, opts ...Option) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if storage == nil {
		storage = NewMemoryTokenStorage()
	}

	m := &Manager{
		config:     config,
		state:      StateUnauthenticated,
		httpClient: commonhttp.NewHTTPClientWithTimeout(30 * time.Second),
		storage:    storage,
		limiter:    ratelimit.Unlimited(),
		logger:     logging.GetGlobalLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.WithFields(logging.Field{Key: "component", Value: "oauth2"})
	m.circuitBreaker = circuitbreaker.NewGoBreaker("oauth2-token", circuitbreaker.OAuthConfig, m.logger)

	return m, nil
}

// State returns the current authorization state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncExpiry()
	return m.state
}

// EnsureAuthorized makes sure a valid access token is installed.
//
// Valid credentials are reused without a network call. Otherwise a refresh
// grant is attempted when a refresh token is on file, or an authorization code
// grant with the configured one-time code. A nil return means Authorize will
// attach a usable bearer token.
func (m *Manager) EnsureAuthorized(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		m.loadStored(ctx)
	}

	m.syncExpiry()
	if m.state == StateAuthenticated {
		return nil
	}

	body, grant, err := m.grantRequest()
	if err != nil {
		m.logger.Error("Cannot authorize", err, logging.Field{Key: "state", Value: m.state.String()})
		return err
	}

	creds, err := m.requestToken(ctx, body)
	if err != nil && grant == grantRefreshToken && errors.IsAuth(err) {
		m.logger.Warn("Refresh token rejected, dropping stored credentials", logging.Err(err))
		m.dropCredentials(ctx)

		if codeBody, codeGrant, grantErr := m.grantRequest(); grantErr == nil {
			grant = codeGrant
			creds, err = m.requestToken(ctx, codeBody)
		}
	}
	if err != nil {
		m.logger.Error("Token request failed", err, logging.Field{Key: "grant_type", Value: grant})
		return err
	}

	if grant == grantAuthorizationCode {
		m.authCodeUsed = true
	}

	m.creds = creds
	m.state = StateAuthenticated

	if err := m.storage.SaveCredentials(ctx, creds); err != nil {
		m.logger.Warn("Failed to persist credentials", logging.Err(err))
	}

	m.logger.Info("Authorized",
		logging.Field{Key: "grant_type", Value: grant},
		logging.Field{Key: "expires_at", Value: creds.ExpiresAt().UTC().Format(time.RFC3339)},
	)

	return nil
}

// Invalidate marks the current access token as expired, typically after the
// API rejected it. The next EnsureAuthorized call refreshes it.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateAuthenticated {
		m.state = StateExpired
		m.logger.Debug("Access token invalidated")
	}
}

// Authorize sets the bearer token on an outbound request
func (m *Manager) Authorize(req *http.Request) error {
	header, err := m.AuthorizationHeader()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", header)
	return nil
}

// AuthorizationHeader returns "Bearer <access token>". An expired or missing
// token is reported as an AuthError without contacting the server.
func (m *Manager) AuthorizationHeader() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.syncExpiry()
	if m.state != StateAuthenticated || m.creds == nil {
		return "", errors.AuthError(fmt.Sprintf("no valid access token (state: %s)", m.state))
	}

	return "Bearer " + m.creds.AccessToken, nil
}

// loadStored reads persisted credentials once. A broken store is logged and
// treated as empty so the authorization code can still be used.
func (m *Manager) loadStored(ctx context.Context) {
	m.loaded = true

	creds, err := m.storage.LoadCredentials(ctx)
	if err != nil {
		m.logger.Warn("Failed to load stored credentials", logging.Err(err))
		return
	}
	if creds == nil {
		return
	}

	m.creds = creds
	m.state = StateAuthenticated
	m.logger.Debug("Loaded stored credentials",
		logging.Field{Key: "expires_at", Value: creds.ExpiresAt().UTC().Format(time.RFC3339)})
}

// dropCredentials forgets credentials the server no longer accepts.
// Callers hold m.mu.
func (m *Manager) dropCredentials(ctx context.Context) {
	m.creds = nil
	m.state = StateUnauthenticated

	if err := m.storage.DeleteCredentials(ctx); err != nil {
		m.logger.Warn("Failed to delete stored credentials", logging.Err(err))
	}
}

// syncExpiry moves Authenticated to Expired once the lifetime has elapsed.
// Callers hold m.mu.
func (m *Manager) syncExpiry() {
	if m.state == StateAuthenticated && m.creds != nil && m.creds.IsExpired(m.now()) {
		m.state = StateExpired
	}
}

// grantRequest picks the grant for the current state. Callers hold m.mu.
func (m *Manager) grantRequest() (map[string]string, string, error) {
	body := map[string]string{
		"client_id":     m.config.ClientID,
		"client_secret": m.config.ClientSecret,
		"redirect_uri":  m.config.RedirectURI,
	}

	if m.creds != nil && m.creds.RefreshToken != "" {
		body["grant_type"] = grantRefreshToken
		body["refresh_token"] = m.creds.RefreshToken
		return body, grantRefreshToken, nil
	}

	if m.config.AuthCode != "" && !m.authCodeUsed {
		body["grant_type"] = grantAuthorizationCode
		body["code"] = m.config.AuthCode
		return body, grantAuthorizationCode, nil
	}

	return nil, "", errors.AuthError("no refresh token on file and no authorization code configured")
}

// requestToken posts a grant to the token endpoint
func (m *Manager) requestToken(ctx context.Context, body map[string]string) (*Credentials, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.InternalError("failed to encode token request", err)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, errors.TransportError("rate limiter wait cancelled", err)
	}

	tokenURL := m.config.TokenURL()
	var tokenResp TokenResponse

	err = m.circuitBreaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(payload))
		if err != nil {
			return errors.InternalError("failed to create token request", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.httpClient.Do(req)
		if err != nil {
			return errors.TransportError(fmt.Sprintf("POST %s failed", tokenURL), err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return tokenError(resp)
		}

		if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
			return errors.DataIntegrityError("failed to decode token response", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if tokenResp.AccessToken == "" {
		return nil, errors.DataIntegrityError("token response has no access_token", nil)
	}

	return &Credentials{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		ExpiresIn:    tokenResp.ExpiresIn,
		CreatedAt:    m.now().Unix(),
	}, nil
}

// tokenError classifies a non-200 token response. 4xx means the grant was
// rejected, anything else is the endpoint failing.
func tokenError(resp *http.Response) error {
	var errResp struct {
		Title       string `json:"title"`
		Detail      string `json:"detail"`
		Hint        string `json:"hint"`
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)

	reason := firstNonEmpty(errResp.Hint, errResp.Detail, errResp.Description, errResp.Error, errResp.Title, resp.Status)
	msg := fmt.Sprintf("token request rejected: %s", reason)
	code := fmt.Sprintf("%d", resp.StatusCode)

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return errors.AuthError(msg).WithCode(code)
	}
	return errors.TransportError(msg, nil).WithCode(code)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
