package types

// SuccessEnvelope wraps every successful JSON response.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Code is one of the stable
// pkg/errors codes.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
