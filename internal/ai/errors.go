package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	openai "github.com/sashabaranov/go-openai"
)

// ErrProviderUnavailable matches every *ProviderUnavailableError via errors.Is.
var ErrProviderUnavailable = errors.New("ai provider unavailable")

type Reason string

const (
	ReasonMissingKey    Reason = "missing_key"
	ReasonHTTPStatus    Reason = "http_status"
	ReasonNetwork       Reason = "network"
	ReasonEmptyResponse Reason = "empty_response"
	ReasonUnsupported   Reason = "unsupported_provider"
	ReasonProviderError Reason = "provider_error"
)

// ProviderUnavailableError explains why a remote provider did not answer.
type ProviderUnavailableError struct {
	Provider   string
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *ProviderUnavailableError) Error() string {
	msg := fmt.Sprintf("provider %s unavailable: %s", e.Provider, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

func (e *ProviderUnavailableError) Is(target error) bool {
	return target == ErrProviderUnavailable
}

func unavailable(provider string, reason Reason, err error) *ProviderUnavailableError {
	return &ProviderUnavailableError{Provider: provider, Reason: reason, Err: err}
}

// classify turns a provider call error into a ProviderUnavailableError.
func classify(provider string, err error) *ProviderUnavailableError {
	var pue *ProviderUnavailableError
	if errors.As(err, &pue) {
		return pue
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderUnavailableError{Provider: provider, Reason: ReasonHTTPStatus, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &ProviderUnavailableError{Provider: provider, Reason: ReasonHTTPStatus, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return unavailable(provider, ReasonNetwork, err)
	}
	return unavailable(provider, ReasonProviderError, err)
}
