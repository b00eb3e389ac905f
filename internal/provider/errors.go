package provider

import (
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of provider failure classes. Every public
// facade operation fails with exactly one of these; local store failures
// propagate unchanged and are not part of the taxonomy.
type ErrorKind string

const (
	KindNotSupported  ErrorKind = "NOT_SUPPORTED"
	KindNotConfigured ErrorKind = "NOT_CONFIGURED"
	KindNotConnected  ErrorKind = "NOT_CONNECTED"
	KindBadRequest    ErrorKind = "BAD_REQUEST"
	KindUpstreamError ErrorKind = "UPSTREAM_ERROR"
)

// ProviderError carries a failure class, a display-safe message and an
// HTTP-equivalent status code.
type ProviderError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Status  int       `json:"status"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewError(kind ErrorKind, message string, status int) *ProviderError {
	return &ProviderError{Kind: kind, Message: message, Status: status}
}

func ErrNotSupported(message string) *ProviderError {
	return NewError(KindNotSupported, message, http.StatusBadRequest)
}

func ErrNotConfigured(message string) *ProviderError {
	return NewError(KindNotConfigured, message, http.StatusBadRequest)
}

func ErrNotConnected(message string) *ProviderError {
	return NewError(KindNotConnected, message, http.StatusBadRequest)
}

func ErrBadRequest(message string) *ProviderError {
	return NewError(KindBadRequest, message, http.StatusBadRequest)
}

func ErrUpstream(message string) *ProviderError {
	return NewError(KindUpstreamError, message, http.StatusBadGateway)
}
