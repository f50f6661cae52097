package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusConflict, "conflict"), http.StatusConflict},
		{"wrapped not found", fmt.Errorf("loading question: %w", ErrQuestionNotFound), http.StatusNotFound},
		{"invalid input", InvalidInput("page must be positive"), http.StatusBadRequest},
		{"timeout", fmt.Errorf("lookup: %w", ErrTimeout), http.StatusServiceUnavailable},
		{"unknown", context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatusCode(tc.err); got != tc.want {
			t.Errorf("%s: HTTPStatusCode = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("handler: %w", Newf(ErrInvalidInput, http.StatusBadRequest, "bad %s", "year"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected errors.Is(ErrInvalidInput) through AppError")
	}
	if got := err.Error(); got != "handler: invalid input: bad year" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestCode(t *testing.T) {
	if got := Code(ErrQuestionNotFound); got != CodeNotFound {
		t.Errorf("Code(not found) = %q", got)
	}
	if got := Code(InvalidInput("x")); got != CodeBadRequest {
		t.Errorf("Code(invalid) = %q", got)
	}
	if got := Code(errors.New("boom")); got != CodeInternal {
		t.Errorf("Code(other) = %q", got)
	}
}
