package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/healthtracker/portal/internal/core/domain"
	"github.com/healthtracker/portal/internal/core/ports"
)

const (
	RequestIDHeader     = "X-Request-ID"
	AuthorizationHeader = "Authorization"
)

// HTTPClient talks to the identity service's JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.IdentityClient = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the service at baseURL. A nil
// httpClient means http.DefaultClient; deadlines come from the caller's ctx.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// session returns the token and user, failing when either is missing.
func (r authResponse) session(op string) (string, *domain.User, error) {
	if r.Token == "" || r.User == nil {
		return "", nil, domain.NewAuthError(domain.KindUnknown, fmt.Errorf("%s response without token or user", op))
	}
	return r.Token, r.User, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// Probe returns the user the token belongs to. An expired or revoked token
// yields domain.ErrUnauthenticated.
func (c *HTTPClient) Probe(ctx context.Context, token string) (*domain.User, error) {
	var out authResponse
	status, msg, err := c.do(ctx, http.MethodGet, "/auth/session", token, nil, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, domain.ErrUnauthenticated
	}
	if status != http.StatusOK {
		return nil, statusError(status, msg)
	}
	if out.User == nil {
		return nil, domain.NewAuthError(domain.KindUnknown, errors.New("session response without user"))
	}
	return out.User, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	var out authResponse
	status, msg, err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return "", nil, err
	}
	if status != http.StatusOK {
		return "", nil, statusError(status, msg)
	}
	return out.session("login")
}

func (c *HTTPClient) Register(ctx context.Context, p domain.Profile) (string, *domain.User, error) {
	body := registerRequest{
		Email:     p.Email,
		Password:  p.Password,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
	}
	var out authResponse
	status, msg, err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &out)
	if err != nil {
		return "", nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return "", nil, statusError(status, msg)
	}
	return out.session("register")
}

// Logout revokes the token server side. An already invalid token is
// reported as domain.ErrUnauthenticated.
func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	status, msg, err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return domain.ErrUnauthenticated
	default:
		return statusError(status, msg)
	}
}

// Name and Check let the client serve as a readiness dependency.
func (c *HTTPClient) Name() string { return "identity" }

func (c *HTTPClient) Check(ctx context.Context) error {
	status, msg, err := c.do(ctx, http.MethodGet, "/health", "", nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return statusError(status, msg)
	}
	return nil
}

// do sends the request and decodes a 2xx body into out. Transport failures
// come back as a NetworkFailure AuthError; any HTTP status is returned to
// the caller with the server's error message.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) (int, string, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, "", fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(AuthorizationHeader, "Bearer "+token)
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", domain.NewAuthError(domain.KindNetworkFailure, fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, "", domain.NewAuthError(domain.KindUnknown, fmt.Errorf("decode response: %w", err))
			}
		}
		return resp.StatusCode, "", nil
	}

	var e errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
	return resp.StatusCode, e.Error, nil
}

func statusError(status int, msg string) error {
	var kind domain.AuthErrorKind
	switch {
	case status == http.StatusUnauthorized:
		kind = domain.KindInvalidCredentials
	case status == http.StatusConflict:
		kind = domain.KindAccountConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = domain.KindValidationFailure
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		kind = domain.KindNetworkFailure
	default:
		kind = domain.KindUnknown
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return domain.NewAuthError(kind, fmt.Errorf("identity service: %d %s", status, msg))
}

type requestIDKey struct{}

// WithRequestID makes outgoing calls carry the given request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
