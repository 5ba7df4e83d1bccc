// Package dumaos implements a JSON-RPC client for the DumaOS router
// interface. DumaOS exposes one RPC endpoint per app; the client
// negotiates a working scheme and auth mode on first use and keeps it for
// the lifetime of the instance.
package dumaos

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/micro-ha/netduma-telemetry/internal/model"
)

const (
	AppDeviceManager = "com.netdumasoftware.devicemanager"
	AppQoS           = "com.netdumasoftware.smartqos"
	AppSystemInfo    = "com.netdumasoftware.systeminfo"

	clientType     = "web"
	defaultTimeout = 10 * time.Second
)

// Probe order: prefer https, then http.
var probeSchemes = []string{"https", "http"}

// Login endpoints tried when cookie-session fallback triggers, in order.
var (
	formLoginPaths  = []string{"/login", "/duma/login"}
	jsonLoginPaths  = []string{"/dumaos/api/login", "/api/login"}
	csrfCookieNames = []string{"csrf_token", "csrftoken", "xsrf-token", "x-csrf-token", "_csrf"}
)

type rpcRequest struct {
	Jsonrpc    string `json:"jsonrpc"`
	ID         int64  `json:"id"`
	ClientType string `json:"clienttype"`
	Method     string `json:"method"`
	Params     []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

type Client struct {
	host       string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger

	mu   sync.Mutex
	base string
	id   int64
}

func NewClient(cfg model.RouterConfig, logger *slog.Logger) *Client {
	var transport *http.Transport
	if defaultTransport, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = defaultTransport.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS} //nolint:gosec

	// The jar carries the session cookie once login fallback has run.
	jar, _ := cookiejar.New(nil)

	return &Client{
		host:     trimHost(cfg.Host),
		username: strings.TrimSpace(cfg.Username),
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Jar:       jar,
			Transport: transport,
		},
		logger: logger,
	}
}

// Call issues one JSON-RPC request against the given app. The returned
// raw message is the response's result field and may be nil when the
// router reports a null result.
func (c *Client) Call(ctx context.Context, appID, method string, params []any) (json.RawMessage, error) {
	base, err := c.ensureBase(ctx)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		Jsonrpc:    "2.0",
		ID:         c.nextID(),
		ClientType: clientType,
		Method:     method,
		Params:     params,
	})
	if err != nil {
		return nil, err
	}
	callURL := base + rpcPath(appID)

	parsed, status, err := c.doRPC(ctx, callURL, body, c.hasCredentials())
	if err != nil && status == 0 {
		return nil, &UnreachableError{LastURL: callURL, Err: err}
	}
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized && c.hasCredentials() {
		// Retry exactly once without basic auth, relying on the cookie
		// session established during negotiation.
		parsed, status, err = c.doRPC(ctx, callURL, body, false)
		if err != nil && status == 0 {
			return nil, &UnreachableError{LastURL: callURL, Err: err}
		}
		if err != nil {
			return nil, err
		}
	}
	if status < 200 || status >= 300 {
		if status == http.StatusUnauthorized && !c.hasCredentials() {
			return nil, &AuthRequiredError{URL: callURL}
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, &AuthFailedError{URL: callURL, Status: status}
		}
		return nil, fmt.Errorf("rpc %s %s: unexpected status %d", appID, method, status)
	}
	if len(parsed.Error) > 0 && string(parsed.Error) != "null" {
		return nil, &RPCError{App: appID, Method: method, Payload: parsed.Error}
	}
	if len(parsed.Result) == 0 || string(parsed.Result) == "null" {
		return nil, nil
	}
	return parsed.Result, nil
}

func (c *Client) doRPC(ctx context.Context, callURL string, body []byte, basicAuth bool) (rpcResponse, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callURL, bytes.NewReader(body))
	if err != nil {
		return rpcResponse{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if basicAuth {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rpcResponse{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return rpcResponse{}, resp.StatusCode, nil
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return rpcResponse{}, resp.StatusCode, fmt.Errorf("decode rpc response: %w", err)
	}
	return parsed, resp.StatusCode, nil
}

func (c *Client) ensureBase(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base != "" {
		return c.base, nil
	}
	base, err := c.negotiate(ctx)
	if err != nil {
		return "", err
	}
	c.base = base
	return base, nil
}

func (c *Client) negotiate(ctx context.Context) (string, error) {
	probe, err := json.Marshal(rpcRequest{
		Jsonrpc:    "2.0",
		ID:         0,
		ClientType: clientType,
		Method:     "get_system_info",
		Params:     []any{},
	})
	if err != nil {
		return "", err
	}

	var (
		lastURL    string
		lastStatus int
		lastErr    error
	)
	for _, scheme := range probeSchemes {
		base := scheme + "://" + c.host
		probeURL := base + rpcPath(AppSystemInfo)
		status, err := c.post(ctx, probeURL, "application/json", probe, c.hasCredentials(), "")
		if err != nil {
			lastURL, lastErr = probeURL, err
			continue
		}
		if status == http.StatusUnauthorized && !c.hasCredentials() {
			// Missing credentials are the root cause; trying the other
			// scheme cannot fix that.
			return "", &AuthRequiredError{URL: probeURL}
		}
		if status >= 200 && status < 300 {
			c.logger.Debug("rpc base negotiated", "base", base)
			return base, nil
		}
		lastURL, lastStatus = probeURL, status
	}

	if c.hasCredentials() {
		return c.sessionLogin(ctx)
	}
	if lastErr == nil && lastStatus != 0 {
		lastErr = fmt.Errorf("status %d", lastStatus)
	}
	return "", &UnreachableError{LastURL: lastURL, Err: lastErr}
}

// sessionLogin seeds cookies, extracts a CSRF token when the firmware
// sets one, and walks the known login endpoints for both schemes. The
// first 200/204 response locks in that scheme as the base.
func (c *Client) sessionLogin(ctx context.Context) (string, error) {
	var (
		lastURL    string
		lastStatus int
		lastErr    error
	)
	for _, scheme := range probeSchemes {
		base := scheme + "://" + c.host
		token, err := c.seedCookies(ctx, base)
		if err != nil {
			lastURL, lastErr = base+"/", err
			continue
		}

		form := url.Values{}
		form.Set("username", c.username)
		form.Set("password", c.password)
		if token != "" {
			form.Set("csrf_token", token)
		}
		for _, path := range formLoginPaths {
			loginURL := base + path
			status, err := c.post(ctx, loginURL, "application/x-www-form-urlencoded", []byte(form.Encode()), false, token)
			if err != nil {
				lastURL, lastErr = loginURL, err
				continue
			}
			if status == http.StatusOK || status == http.StatusNoContent {
				c.logger.Debug("session login accepted", "url", loginURL)
				return base, nil
			}
			lastURL, lastStatus, lastErr = loginURL, status, nil
		}

		creds, err := json.Marshal(map[string]string{"username": c.username, "password": c.password})
		if err != nil {
			return "", err
		}
		for _, path := range jsonLoginPaths {
			loginURL := base + path
			status, err := c.post(ctx, loginURL, "application/json", creds, false, token)
			if err != nil {
				lastURL, lastErr = loginURL, err
				continue
			}
			if status == http.StatusOK || status == http.StatusNoContent {
				c.logger.Debug("session login accepted", "url", loginURL)
				return base, nil
			}
			lastURL, lastStatus, lastErr = loginURL, status, nil
		}
	}
	return "", &AuthFailedError{URL: lastURL, Status: lastStatus, Err: lastErr}
}

func (c *Client) seedCookies(ctx context.Context, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	seeded, err := url.Parse(base + "/")
	if err != nil {
		return "", nil
	}
	for _, cookie := range c.httpClient.Jar.Cookies(seeded) {
		name := strings.ToLower(cookie.Name)
		for _, candidate := range csrfCookieNames {
			if name == candidate {
				return cookie.Value, nil
			}
		}
	}
	return "", nil
}

func (c *Client) post(ctx context.Context, target, contentType string, body []byte, basicAuth bool, csrfToken string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if csrfToken != "" {
		req.Header.Set("X-CSRF-Token", csrfToken)
	}
	if basicAuth {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

func (c *Client) hasCredentials() bool {
	return c.username != "" && c.password != ""
}

// The id only satisfies JSON-RPC framing; it is never used for response
// correlation, but must stay unique and increasing per instance.
func (c *Client) nextID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id++
	return c.id
}

func rpcPath(appID string) string {
	return "/apps/" + appID + "/rpc/"
}

func trimHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}
