package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/shared"
)

// Session is the client-side copy of the last token pair.
type Session struct {
	UserID       string
	UserName     string
	Email        string
	DisplayName  string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	session *Session
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Session returns a copy of the current session, or nil when logged out.
func (c *HTTPClient) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *HTTPClient) setSession(r *shared.SessionResponse) *Session {
	s := &Session{
		UserID:       r.UserID,
		UserName:     r.UserName,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    time.Unix(r.ExpiresAt, 0).UTC(),
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return s
}

func (c *HTTPClient) tokens() (access, refresh string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return "", "", false
	}
	return c.session.AccessToken, c.session.RefreshToken, true
}

func (c *HTTPClient) Register(ctx context.Context, userName, email, displayName string, password []byte) (*Session, error) {
	var resp shared.SessionResponse
	err := c.do(ctx, http.MethodPost, shared.RouteRegister, "", shared.RegisterRequest{
		UserName:    userName,
		Email:       email,
		DisplayName: displayName,
		Password:    string(password),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.setSession(&resp), nil
}

func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) (*Session, error) {
	var resp shared.SessionResponse
	err := c.do(ctx, http.MethodPost, shared.RouteLogin, "", shared.LoginRequest{Email: email, Password: string(password)}, &resp)
	if err != nil {
		return nil, err
	}
	return c.setSession(&resp), nil
}

// Refresh exchanges the stored refresh token for a new access token. The
// server rejects the exchange while the access token is still valid.
func (c *HTTPClient) Refresh(ctx context.Context) (*Session, error) {
	access, refresh, ok := c.tokens()
	if !ok {
		return nil, ErrNotLoggedIn
	}

	var resp shared.SessionResponse
	err := c.do(ctx, http.MethodPost, shared.RouteRefreshToken, "", shared.RefreshRequest{RefreshToken: refresh, AccessToken: access}, &resp)
	if err != nil {
		return nil, err
	}
	return c.setSession(&resp), nil
}

// CurrentUser calls the protected account endpoint, refreshing once on an
// expired access token.
func (c *HTTPClient) CurrentUser(ctx context.Context) (*Session, error) {
	var resp shared.SessionResponse
	if err := c.authorized(ctx, http.MethodGet, shared.RouteCurrentUser, nil, &resp); err != nil {
		return nil, err
	}
	return c.setSession(&resp), nil
}

// Verify checks any access token, the stored one when token is empty.
func (c *HTTPClient) Verify(ctx context.Context, token string) (*shared.VerifyTokenResponse, error) {
	if token == "" {
		access, _, ok := c.tokens()
		if !ok {
			return nil, ErrNotLoggedIn
		}
		token = access
	}

	var resp shared.VerifyTokenResponse
	if err := c.do(ctx, http.MethodPost, shared.RouteVerifyToken, "", shared.VerifyTokenRequest{Token: token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes every refresh token of the user and forgets the session
// locally, even when the server call fails.
func (c *HTTPClient) Logout(ctx context.Context) (int64, error) {
	access, _, ok := c.tokens()
	if !ok {
		return 0, ErrNotLoggedIn
	}

	var resp shared.LogoutResponse
	err := c.do(ctx, http.MethodPost, shared.RouteLogout, access, nil, &resp)

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	if err != nil {
		return 0, err
	}
	return resp.Revoked, nil
}

func (c *HTTPClient) authorized(ctx context.Context, method, route string, body, out any) error {
	access, refresh, ok := c.tokens()
	if !ok {
		return ErrNotLoggedIn
	}

	err := c.do(ctx, method, route, access, body, out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Code != shared.CodeTokenExpired || refresh == "" {
		return err
	}

	s, rerr := c.Refresh(ctx)
	if rerr != nil {
		return rerr
	}
	return c.do(ctx, method, route, s.AccessToken, body, out)
}

func (c *HTTPClient) do(ctx context.Context, method, route, bearer string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+route, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e shared.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
