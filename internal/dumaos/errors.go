package dumaos

import (
	"encoding/json"
	"fmt"
)

// AuthRequiredError means the router demands credentials but none are
// configured. Not retryable until the user supplies them.
type AuthRequiredError struct {
	URL string
}

func (e *AuthRequiredError) Error() string {
	if e == nil {
		return "router requires credentials"
	}
	return fmt.Sprintf("router at %s requires credentials; set username and password", e.URL)
}

// AuthFailedError means credentials were supplied but every negotiated
// auth path rejected them. Carries the last attempted endpoint and
// status, or the last transport error when no endpoint answered.
type AuthFailedError struct {
	URL    string
	Status int
	Err    error
}

func (e *AuthFailedError) Error() string {
	if e == nil {
		return "authentication failed"
	}
	if e.Status == 0 && e.Err != nil {
		return fmt.Sprintf("authentication failed; last attempt %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("authentication failed; last attempt %s returned status %d", e.URL, e.Status)
}

func (e *AuthFailedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UnreachableError means no scheme/host combination responded.
type UnreachableError struct {
	LastURL string
	Err     error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "router unreachable"
	}
	if e.Err != nil {
		return fmt.Sprintf("unable to reach router RPC; last attempt %s: %v", e.LastURL, e.Err)
	}
	return fmt.Sprintf("unable to reach router RPC; last attempt %s", e.LastURL)
}

func (e *UnreachableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RPCError carries a JSON-RPC error object returned by the router.
type RPCError struct {
	App     string
	Method  string
	Payload json.RawMessage
}

func (e *RPCError) Error() string {
	if e == nil {
		return "rpc error"
	}
	return fmt.Sprintf("rpc %s %s failed: %s", e.App, e.Method, string(e.Payload))
}
