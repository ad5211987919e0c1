// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// LookupError is a classified failure of a geocoding request.
type LookupError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType enumerates lookup failures.
type ErrorType int

const (
	// ErrorTypeUnknown unknown failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit rate limit reached.
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded quota exhausted or access denied.
	ErrorTypeQuotaExceeded
	// ErrorTypeTimeout connection timeout.
	ErrorTypeTimeout
	// ErrorTypeInvalidRequest malformed request.
	ErrorTypeInvalidRequest
	// ErrorTypeNetworkError service unreachable.
	ErrorTypeNetworkError
	// ErrorTypeDecode unparseable response.
	ErrorTypeDecode
)

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// IsRateLimitError reports whether err is caused by a rate limit.
func IsRateLimitError(err error) bool {
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.Type == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// IsTimeoutError reports whether err is a timeout.
func IsTimeoutError(err error) bool {
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.Type == ErrorTypeTimeout
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// ClassifyHTTPError maps an unexpected HTTP status to a LookupError.
func ClassifyHTTPError(statusCode int) *LookupError {
	switch statusCode {
	case http.StatusTooManyRequests:
		return &LookupError{
			Type:    ErrorTypeRateLimit,
			Message: "rate limit reached",
		}
	case http.StatusForbidden, http.StatusUnauthorized:
		return &LookupError{
			Type:    ErrorTypeQuotaExceeded,
			Message: "quota exceeded or access denied",
		}
	case http.StatusBadRequest:
		return &LookupError{
			Type:    ErrorTypeInvalidRequest,
			Message: "invalid request",
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &LookupError{
			Type:    ErrorTypeNetworkError,
			Message: fmt.Sprintf("service unavailable (status %d)", statusCode),
		}
	default:
		return &LookupError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("HTTP error %d", statusCode),
		}
	}
}

// outcomeForHTTPStatus maps a non 200 status. A 429 is treated as an hourly
// limit since the services do not say which window ran out.
func outcomeForHTTPStatus(statusCode int) Outcome {
	err := ClassifyHTTPError(statusCode)
	if err.Type == ErrorTypeRateLimit {
		return RateLimited{Window: Hourly}
	}

	return TransientError{Err: err}
}

// transportError wraps a failed round trip.
func transportError(err error) Outcome {
	typ := ErrorTypeNetworkError
	if IsTimeoutError(err) {
		typ = ErrorTypeTimeout
	}

	return TransientError{Err: &LookupError{Type: typ, Message: "lookup request failed", Err: err}}
}
