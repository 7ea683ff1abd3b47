package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestSearchError_Error(t *testing.T) {
	err := &SearchError{
		Code:    ErrNotFound,
		Message: "not found: Test",
	}

	expected := "NOT_FOUND: not found: Test"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidAtomicNumber(t *testing.T) {
	err := NewInvalidAtomicNumber(119, 118)

	if err.Code != ErrInvalidAtomicNumber {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidAtomicNumber)
	}
	if err.Details["atomic_number"] != 119 {
		t.Errorf("Details[atomic_number] = %v, want 119", err.Details["atomic_number"])
	}
	if err.Message != "atomic number 119 outside [1, 118]" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewUnknownElement(t *testing.T) {
	err := NewUnknownElement("Xx")

	if err.Code != ErrUnknownElement {
		t.Errorf("Code = %q, want %q", err.Code, ErrUnknownElement)
	}
	if err.Details["symbol"] != "Xx" {
		t.Errorf("Details[symbol] = %v, want %q", err.Details["symbol"], "Xx")
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("search name is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Message != "search name is required" {
		t.Errorf("Message = %q, want %q", err.Message, "search name is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("ReducedSearch")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Details["identifier"] != "ReducedSearch" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "ReducedSearch")
	}
}

func TestNewCacheCorrupt_WrapsCause(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")
	err := NewCacheCorrupt("Test", cause)

	if err.Code != ErrCacheCorrupt {
		t.Errorf("Code = %q, want %q", err.Code, ErrCacheCorrupt)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cache corrupt error to wrap its cause")
	}
	if err.Details["search_name"] != "Test" {
		t.Errorf("Details[search_name] = %v, want %q", err.Details["search_name"], "Test")
	}
}

func TestNewCredentialInvalid(t *testing.T) {
	err := NewCredentialInvalid(nil)

	if err.Code != ErrCredentialInvalid {
		t.Errorf("Code = %q, want %q", err.Code, ErrCredentialInvalid)
	}
	if err.Message != "access key was rejected" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewRemoteQuery(t *testing.T) {
	cause := fmt.Errorf("502 Bad Gateway")
	err := NewRemoteQuery(cause)

	if err.Code != ErrRemoteQuery {
		t.Errorf("Code = %q, want %q", err.Code, ErrRemoteQuery)
	}
	if err.Message != "remote query failed: 502 Bad Gateway" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("database connection failed"))

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Message != "database connection failed" {
			t.Errorf("Message = %q, want %q", err.Message, "database connection failed")
		}
	})

	t.Run("with nil error", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Message != "internal error" {
			t.Errorf("Message = %q, want %q", err.Message, "internal error")
		}
	})
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     ErrorCode
		expected bool
	}{
		{"matching code", NewNotFound("x"), ErrNotFound, true},
		{"different code", NewNotFound("x"), ErrInvalidRequest, false},
		{"wrapped", fmt.Errorf("run: %w", NewCacheCorrupt("x", nil)), ErrCacheCorrupt, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil error", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NewRemoteQuery(nil)); got != ErrRemoteQuery {
		t.Errorf("CodeOf() = %q, want %q", got, ErrRemoteQuery)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != ErrInternal {
		t.Errorf("CodeOf(plain) = %q, want %q", got, ErrInternal)
	}
}
