package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if !stdErrors.Is(err, internal) {
		t.Fatal("expected wrapped error to satisfy errors.Is")
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := ErrInvalidSession
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}
	if base.Internal != nil {
		t.Fatal("expected catalogue error to remain unchanged")
	}
	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestWithMessagePreservesCode(t *testing.T) {
	err := ErrInvalidInput.WithMessage("content exceeds 500 characters")

	if err.Code != ErrInvalidInput.Code {
		t.Fatalf("expected code %s, got %s", ErrInvalidInput.Code, err.Code)
	}
	if err.Message != "content exceeds 500 characters" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if ErrInvalidInput.Message == err.Message {
		t.Fatal("expected catalogue message to remain unchanged")
	}
}

func TestRateLimitedCarriesRetryHint(t *testing.T) {
	err := RateLimited(2500)

	if err.Code != "RATE_LIMITED" {
		t.Fatalf("unexpected code: %s", err.Code)
	}
	if err.RetryAfterMs != 2500 {
		t.Fatalf("expected retry hint 2500, got %d", err.RetryAfterMs)
	}
	if err.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}

	if neg := RateLimited(-1); neg.RetryAfterMs != 0 {
		t.Fatalf("expected negative hint to clamp to zero, got %d", neg.RetryAfterMs)
	}
}

func TestFromError(t *testing.T) {
	if out := FromError(ErrAlreadyVoted); out != ErrAlreadyVoted {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternal.Code {
		t.Fatalf("expected internal code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}
