// Package shopapi is a small client for the demo shop JSON API.
//
// Example usage:
//
//	client, err := shopapi.NewClient("http://localhost:3000")
//	if err != nil {
//	    return err
//	}
//	sess, err := client.Login(ctx, "student", "Password123")
//	if err != nil {
//	    return err
//	}
//	cart, err := client.AddToCart(ctx, demoshop.Item{Name: "Mouse", Price: 29.99})
package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/entrhq/authcache/pkg/demoshop"
)

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 25 * time.Second

var (
	// ErrInvalidCredentials is returned by Login on HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned by the protected endpoints on HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotLoggedIn is returned when a protected call is made before Login.
	ErrNotLoggedIn = errors.New("not logged in")
)

// StatusError is any other non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Client talks to one demo shop instance and remembers the bearer token of
// the last successful Login.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its cookie jar is kept
// as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken starts the client with an existing bearer token, for example one
// read from a cached session snapshot.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a client for the shop at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("shop base URL is required")
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		httpClient: &http.Client{Jar: jar, Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	return c.token
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (demoshop.Session, error) {
	var out demoshop.LoginResponse
	err := c.do(ctx, http.MethodPost, demoshop.RouteLogin, false,
		demoshop.LoginRequest{Username: username, Password: password}, &out)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return demoshop.Session{}, fmt.Errorf("login as %s: %w", username, ErrInvalidCredentials)
		}
		return demoshop.Session{}, fmt.Errorf("login as %s: %w", username, err)
	}
	c.token = out.Session.Token
	return out.Session, nil
}

// Cart returns the items in the current user's cart.
func (c *Client) Cart(ctx context.Context) ([]demoshop.Item, error) {
	var out demoshop.CartResponse
	if err := c.do(ctx, http.MethodGet, demoshop.RouteCart, true, nil, &out); err != nil {
		return nil, err
	}
	return out.Cart, nil
}

// AddToCart adds item and returns the updated cart.
func (c *Client) AddToCart(ctx context.Context, item demoshop.Item) ([]demoshop.Item, error) {
	var out demoshop.CartResponse
	if err := c.do(ctx, http.MethodPost, demoshop.RouteCart, true, item, &out); err != nil {
		return nil, err
	}
	return out.Cart, nil
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, demoshop.RouteCart, true, nil, nil)
}

// Orders lists the current user's order history.
func (c *Client) Orders(ctx context.Context) ([]demoshop.Order, error) {
	var out demoshop.OrdersResponse
	if err := c.do(ctx, http.MethodGet, demoshop.RouteOrders, true, nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// OpenAPI fetches the API description.
func (c *Client) OpenAPI(ctx context.Context) (demoshop.OpenAPIDocument, error) {
	var out demoshop.OpenAPIDocument
	if err := c.do(ctx, http.MethodGet, demoshop.RouteOpenAPI, false, nil, &out); err != nil {
		return demoshop.OpenAPIDocument{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, body, out interface{}) error {
	if auth && c.token == "" {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotLoggedIn)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr demoshop.ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
