package clients

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

	"semaphore/auth-session/internal/model"
)

var ErrUnexpectedStatus = errors.New("unexpected_status")

// AuthClient speaks the login, logout and identity endpoints. The session
// cookie lives in its jar and never surfaces to callers.
type AuthClient struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) (*AuthClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"userType"`
}

type LoginResult struct {
	User       model.Identity
	RedirectTo string
}

// LoginError is a rejection the server chose to explain.
type LoginError struct {
	Status  int
	Message string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login rejected (%d): %s", e.Status, e.Message)
}

type response struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	User       *model.Identity `json:"user,omitempty"`
	RedirectTo string          `json:"redirectTo,omitempty"`
}

func (c *AuthClient) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/auth/login", req)
	if err != nil {
		return LoginResult{}, err
	}
	switch {
	case status == http.StatusOK && body.Success && body.User != nil:
		return LoginResult{User: *body.User, RedirectTo: body.RedirectTo}, nil
	case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusTooManyRequests:
		return LoginResult{}, &LoginError{Status: status, Message: body.Message}
	default:
		return LoginResult{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
}

// WhoAmI returns nil without error when the caller is anonymous.
func (c *AuthClient) WhoAmI(ctx context.Context) (*model.Identity, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
	if !body.Success || body.User == nil {
		return nil, nil
	}
	return body.User, nil
}

func (c *AuthClient) Logout(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
	return nil
}

func (c *AuthClient) do(ctx context.Context, method, path string, payload interface{}) (int, response, error) {
	var buf io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, response{}, err
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return 0, response{}, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, response{}, err
	}
	defer resp.Body.Close()

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, response{}, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, body, nil
}
