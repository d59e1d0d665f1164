package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOfWrapped(t *testing.T) {
	base := NotFound("conversation %d", 7)
	wrapped := fmt.Errorf("join: %w", base)

	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Fatalf("CodeOf: got %q want %q", got, CodeNotFound)
	}
	if got := StatusOf(wrapped); got != http.StatusNotFound {
		t.Fatalf("StatusOf: got %d want %d", got, http.StatusNotFound)
	}
	if !Is(wrapped, CodeNotFound) {
		t.Fatalf("expected Is(not_found)")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	err := errors.New("boom")
	if got := CodeOf(err); got != CodeInternal {
		t.Fatalf("CodeOf: got %q want %q", got, CodeInternal)
	}
	if got := StatusOf(err); got != http.StatusInternalServerError {
		t.Fatalf("StatusOf: got %d", got)
	}
}

func TestErrorMessageFallbacks(t *testing.T) {
	var nilErr *Error
	if nilErr.Error() != "" {
		t.Fatalf("nil error should render empty")
	}
	if got := New(http.StatusBadGateway, "", nil).Error(); got != "api error (502)" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := New(0, CodeUpstreamFatal, nil).Error(); got != CodeUpstreamFatal {
		t.Fatalf("unexpected message %q", got)
	}
}
