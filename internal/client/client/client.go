package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Tokens mirrors the server's authentication result.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type apiError struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// HTTPClient talks to the auth endpoints of the server.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Register(ctx context.Context, username, email string, password []byte) (*Tokens, error) {
	body := map[string]string{"username": username, "email": email, "password": string(password)}
	var t Tokens
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) Login(ctx context.Context, username string, password []byte) (*Tokens, error) {
	body := map[string]string{"username": username, "password": string(password)}
	var t Tokens
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var t Tokens
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Me returns the user id the server associates with accessToken.
func (c *HTTPClient) Me(ctx context.Context, accessToken string) (string, error) {
	var out struct {
		UserID string `json:"user_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", accessToken, nil, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// Ping checks the server's /health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
		}
		return nil
	}

	var e apiError
	_ = json.NewDecoder(resp.Body).Decode(&e)
	msg := e.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%w: %s", statusSentinel(resp.StatusCode), msg)
}

func statusSentinel(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusConflict:
		return ErrConflict
	case code == http.StatusBadRequest:
		return ErrBadRequest
	default:
		return ErrUnavailable
	}
}
