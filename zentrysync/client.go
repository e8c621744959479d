package zentrysync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Transport is the minimal provider request surface the syncers depend on.
// The concrete Client adds bearer auth with one 401 refresh-and-retry.
type Transport interface {
	Request(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error)
}

type Client struct {
	baseURL   string
	tenantRef string
	http      *http.Client
	limiter   *time.Ticker

	mu    sync.Mutex
	oauth *oauth2.Config
	token *oauth2.Token
}

// ClientCredentials holds the per-connection OAuth state persisted on the
// integration connection row.
type ClientCredentials struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	TenantRef      string
}

func NewClient(creds ClientCredentials) (*Client, error) {
	if strings.TrimSpace(creds.RefreshToken) == "" {
		return nil, errors.New("zentry refresh token is empty")
	}

	baseURL := strings.TrimSpace(os.Getenv("ZENTRY_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.zentryledger.com"
	}
	tokenURL := strings.TrimSpace(os.Getenv("ZENTRY_TOKEN_URL"))
	if tokenURL == "" {
		tokenURL = "https://identity.zentryledger.com/connect/token"
	}

	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("ZENTRY_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}
	if creds.TokenExpiresAt != nil {
		token.Expiry = *creds.TokenExpiresAt
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tenantRef: creds.TenantRef,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.NewTicker(interval),
		oauth: &oauth2.Config{
			ClientID:     os.Getenv("ZENTRY_CLIENT_ID"),
			ClientSecret: os.Getenv("ZENTRY_CLIENT_SECRET"),
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		token: token,
	}, nil
}

// Close stops the rate limiter. Each sync run builds its own Client, so the
// ticker must not outlive the run.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Token exposes the current token so callers can persist a rotated refresh
// token after a sync run.
func (c *Client) Token() oauth2.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.token
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token.Valid() {
		return c.token.AccessToken, nil
	}
	return c.refreshLocked(ctx)
}

// forceRefresh drops the cached access token and fetches a new one. Used for
// the single 401 retry cycle.
func (c *Client) forceRefresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token.Expiry = time.Now().Add(-time.Minute)
	_, err := c.refreshLocked(ctx)
	return err
}

func (c *Client) refreshLocked(ctx context.Context) (string, error) {
	src := c.oauth.TokenSource(ctx, c.token)
	fresh, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("zentry token refresh: %w", err)
	}
	c.token = fresh
	return fresh.AccessToken, nil
}

// Request issues one provider call. Policy: a 401 gets exactly one token
// refresh-and-retry; a 5xx or transport error gets one bounded retry and is
// then surfaced as a TransientError. A 2xx body that fails to parse as JSON is
// a StructuralError.
func (c *Client) Request(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error) {
	data, status, err := c.do(ctx, method, path, params, body)
	if err == nil && status == http.StatusUnauthorized {
		if refreshErr := c.forceRefresh(ctx); refreshErr != nil {
			return nil, refreshErr
		}
		data, status, err = c.do(ctx, method, path, params, body)
	}
	if err != nil || status >= 500 {
		// One bounded retry for transport failures and server errors.
		time.Sleep(time.Second)
		data, status, err = c.do(ctx, method, path, params, body)
	}
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	if status >= 500 {
		return nil, &TransientError{Err: fmt.Errorf("zentry api error %d: %s", status, truncate(data, 512))}
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("zentry api error %d: %s", status, truncate(data, 512))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &StructuralError{Path: path, Detail: "empty response body"}
	}
	if !json.Valid(data) {
		return nil, &StructuralError{Path: path, Detail: "response is not valid JSON"}
	}
	return json.RawMessage(data), nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any) ([]byte, int, error) {
	select {
	case <-c.limiter.C:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}

	bearer, err := c.bearer(ctx)
	if err != nil {
		return nil, 0, err
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if c.tenantRef != "" {
		req.Header.Set("Zentry-Tenant-Id", c.tenantRef)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return data, resp.StatusCode, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}
