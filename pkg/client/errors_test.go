package client

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{name: "client error should not retry", errorClass: ErrorClassClient, expected: false},
		{name: "server error should retry", errorClass: ErrorClassServer, expected: true},
		{name: "rate limit should retry", errorClass: ErrorClassRateLimit, expected: true},
		{name: "network error should retry", errorClass: ErrorClassNetwork, expected: true},
		{name: "empty error class should not retry", errorClass: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.errorClass); got != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, got, tt.expected)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{http.StatusOK, ""},
		{http.StatusNotModified, ""},
		{http.StatusBadRequest, ErrorClassClient},
		{http.StatusNotFound, ErrorClassClient},
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusServiceUnavailable, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := classify(tt.status); got != tt.want {
				t.Errorf("classify(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestIsIdempotent(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		if !isIdempotent(m) {
			t.Errorf("%s should be idempotent", m)
		}
	}
	for _, m := range []string{http.MethodPost, http.MethodPatch} {
		if isIdempotent(m) {
			t.Errorf("%s should not be idempotent", m)
		}
	}
}

func TestIsMutation(t *testing.T) {
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		if !isMutation(m) {
			t.Errorf("%s should be a mutation", m)
		}
	}
	for _, m := range []string{http.MethodGet, http.MethodHead} {
		if isMutation(m) {
			t.Errorf("%s should not be a mutation", m)
		}
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				StatusCode: 500,
				ErrorClass: ErrorClassServer,
				Message:    "internal server error",
				Err:        errors.New("connection refused"),
			},
			expected: "relaxflow server error (status 500): internal server error: connection refused",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "User not found",
			},
			expected: "relaxflow client error (status 404): User not found",
		},
		{
			name: "rate limit error",
			apiError: &APIError{
				StatusCode: 429,
				ErrorClass: ErrorClassRateLimit,
				Message:    "Too Many Requests",
			},
			expected: "relaxflow rate_limit error (status 429): Too Many Requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	wrappedErr := errors.New("wrapped error")
	apiError := &APIError{StatusCode: 500, ErrorClass: ErrorClassServer, Message: "server error", Err: wrappedErr}

	if apiError.Unwrap() != wrappedErr {
		t.Errorf("Unwrap() = %v, want %v", apiError.Unwrap(), wrappedErr)
	}
	if !errors.Is(apiError, wrappedErr) {
		t.Error("errors.Is should work with wrapped error")
	}
	if (&APIError{StatusCode: 404}).Unwrap() != nil {
		t.Error("Unwrap() should be nil without a wrapped error")
	}
}

func TestAPIError_HTTPStatusThroughWrapping(t *testing.T) {
	notFound := &APIError{StatusCode: 404, ErrorClass: ErrorClassClient, Message: "Not Found"}

	var status interface{ HTTPStatus() int }
	if !errors.As(fmt.Errorf("list users: %w", notFound), &status) {
		t.Fatal("wrapped APIError should expose HTTPStatus")
	}
	if status.HTTPStatus() != 404 {
		t.Errorf("HTTPStatus() = %d, want 404", status.HTTPStatus())
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		line   string
		body   string
		want   string
	}{
		{name: "server message", status: 400, line: "400 Bad Request", body: `{"message":"Email already in use"}`, want: "Email already in use"},
		{name: "empty message", status: 400, line: "400 Bad Request", body: `{"message":""}`, want: "Bad Request"},
		{name: "html body", status: 502, line: "502 Bad Gateway", body: `<html>`, want: "Bad Gateway"},
		{name: "unknown status", status: 599, line: "599 Custom Failure", body: ``, want: "Custom Failure"},
		{name: "nothing", status: 599, line: "", body: ``, want: "unexpected status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorMessage(tt.status, tt.line, []byte(tt.body)); got != tt.want {
				t.Errorf("errorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
