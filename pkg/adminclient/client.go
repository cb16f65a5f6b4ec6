package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/licensegate/pkg/errors"
	"github.com/angelmondragon/licensegate/pkg/types"
)

const (
	adminSecretHeader          = "X-Admin-Secret"
	actorHeader                = "X-Actor"
	idempotencyHeader          = "Idempotency-Key"
	errorBodyReadLimit   int64 = 4096
	defaultClientTimeout       = 10 * time.Second
)

var (
	errBaseURLRequired = errors.New("license server url is required")
	errSecretRequired  = errors.New("admin secret is required")
)

// Client calls the license admin API with the shared admin secret.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secret     string
	actor      string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func New(baseURL, secret string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if secret == "" {
		return nil, errSecretRequired
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse license server url: %w", err)
	}

	client := &Client{
		baseURL:    baseURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// As returns a copy of the client that identifies requests with actor.
func (c *Client) As(actor string) *Client {
	clone := *c
	clone.actor = strings.TrimSpace(actor)
	return &clone
}

// Create issues a key. idempotencyKey may be empty.
func (c *Client) Create(ctx context.Context, req types.CreateLicenseRequest, idempotencyKey string) (*types.IssuedLicense, error) {
	var out types.IssuedLicense
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[idempotencyHeader] = idempotencyKey
	}
	if err := c.do(ctx, http.MethodPost, "/api/create", nil, req, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateKey issues a key owned by actor, or by the client's actor when empty.
func (c *Client) GenerateKey(ctx context.Context, actor string) (*types.IssuedLicense, error) {
	var out types.IssuedLicense
	if err := c.do(ctx, http.MethodPost, "/api/genkey", nil, types.GenerateKeyRequest{Actor: actor}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Revoke(ctx context.Context, key string) (*types.RevokeLicenseResponse, error) {
	var out types.RevokeLicenseResponse
	if err := c.do(ctx, http.MethodPost, "/api/revoke", nil, types.RevokeLicenseRequest{Key: key}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns licenses newest first. limit <= 0 asks for the server default.
func (c *Client) List(ctx context.Context, limit int) ([]types.License, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out []types.License
	if err := c.do(ctx, http.MethodGet, "/api/list", query, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Lookup(ctx context.Context, owner string) ([]types.License, error) {
	query := url.Values{}
	query.Set("owner", owner)
	var out []types.License
	if err := c.do(ctx, http.MethodGet, "/api/lookup", query, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Validate(ctx context.Context, key, ip string) (*types.ValidateLicenseResponse, error) {
	var out types.ValidateLicenseResponse
	if err := c.do(ctx, http.MethodPost, "/api/validate", nil, types.ValidateLicenseRequest{Key: key, IP: ip}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, headers map[string]string, dest any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "license admin client not configured")
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build request")
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(adminSecretHeader, c.secret)
	if c.actor != "" {
		httpReq.Header.Set(actorHeader, c.actor)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "license server unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))

	var apiErr types.APIError
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	code, ok := pkgerrors.ParseCode(apiErr.Code)
	if !ok {
		code = pkgerrors.CodeForStatus(resp.StatusCode)
	}
	typed := pkgerrors.New(code, msg)
	if apiErr.Details != nil {
		typed = typed.WithDetails(apiErr.Details)
	}
	return typed
}
