package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Envelope is the response wrapper both upstream APIs use.
type Envelope struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message"`
	Code      string              `json:"code,omitempty"`
	Data      json.RawMessage     `json:"data"`
	Errors    map[string][]string `json:"errors,omitempty"`
	Timestamp string              `json:"timestamp"`
	Status    int                 `json:"status"`
}

// User-facing messages for the normalized upstream error taxonomy.
// Handlers render these; raw transport errors never reach a template.
const (
	MsgInvalidCredentials = "Invalid username or password"
	MsgAccountLocked      = "Account locked or not allowed to sign in"
	MsgRateLimited        = "Too many attempts, try again later"
	MsgConnectionError    = "Could not reach the server"
)

// APIError is a normalized upstream failure. Status 0 means the request
// never produced an HTTP response (network error).
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string][]string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream: connection error: %s", e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("upstream: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream: status %d: %s", e.Status, e.Message)
}

// IsNetwork reports whether the failure happened before any HTTP response.
func (e *APIError) IsNetwork() bool {
	return e != nil && e.Status == 0
}

// UserMessage maps the failure onto the message surfaced to the user.
func (e *APIError) UserMessage() string {
	switch {
	case e == nil:
		return ""
	case e.Status == 0:
		return MsgConnectionError
	case e.Status == http.StatusUnauthorized:
		return MsgInvalidCredentials
	case e.Status == http.StatusForbidden:
		return MsgAccountLocked
	case e.Status == http.StatusTooManyRequests:
		return MsgRateLimited
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("Request failed with status %d", e.Status)
	}
}

// AsAPIError unwraps err into an *APIError when possible. It sees through
// url.Error wrapping added by http.Client around transport failures.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Upstream performs envelope request/response cycles against one remote
// API. The injected client carries the outbound middleware chain, so a
// given Upstream is authenticated or not depending on how it was wired.
type Upstream struct {
	baseURL string
	httpc   *http.Client
}

// NewUpstream constructs an Upstream for the base URL.
func NewUpstream(baseURL string, httpc *http.Client) *Upstream {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Upstream{baseURL: baseURL, httpc: httpc}
}

// Do performs one request/response cycle and normalizes every failure into
// an *APIError. Bodies that are not the standard envelope are tolerated on
// error statuses. bearer, when non-empty, is attached explicitly; most
// callers leave it empty and rely on the outbound chain instead.
func (u *Upstream) Do(ctx context.Context, method, path string, query url.Values, body any, bearer string) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpx: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := u.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("httpx: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := u.httpc.Do(req)
	if err != nil {
		// The refresh middleware surfaces its own *APIError through the
		// client's url.Error wrapper; keep it instead of reporting a
		// connection failure.
		if apiErr, ok := AsAPIError(err); ok {
			return nil, apiErr
		}
		return nil, &APIError{Status: 0, Message: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Status: 0, Message: err.Error()}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("httpx: decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		status := resp.StatusCode
		if status < 400 && env.Status >= 400 {
			status = env.Status
		}
		return nil, &APIError{Status: status, Code: env.Code, Message: env.Message, Fields: env.Errors}
	}
	return &env, nil
}

// DoJSON performs Do and decodes the envelope data into out when non-nil.
func (u *Upstream) DoJSON(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	env, err := u.Do(ctx, method, path, query, body, "")
	if err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("httpx: decode data: %w", err)
	}
	return nil
}
