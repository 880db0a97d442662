// Package types holds the JSON envelopes every endpoint responds with.
package types

// SuccessEnvelope wraps successful payloads under a single data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the wire form of a typed service error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps APIError; handlers never emit a bare error string.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
