package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("crop")
	err := fmt.Errorf("lookup: %w", base)

	if got := KindOf(err); got != KindNotFound {
		t.Fatalf("expected %s, got %s", KindNotFound, got)
	}
	if got := Message(err); got != "crop not found" {
		t.Fatalf("unexpected message %q", got)
	}
	if !Is(err, KindNotFound) {
		t.Fatal("Is should match wrapped kind")
	}
}

func TestPlainErrorIsInternal(t *testing.T) {
	err := errors.New("boom")
	if KindOf(err) != KindInternal {
		t.Fatal("plain errors must map to internal")
	}
	if Message(err) != "internal server error" {
		t.Fatal("internal causes must not leak")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:    http.StatusBadRequest,
		KindUnauthorized:  http.StatusUnauthorized,
		KindForbidden:     http.StatusForbidden,
		KindNotFound:      http.StatusNotFound,
		KindConflict:      http.StatusConflict,
		KindGateway:       http.StatusPaymentRequired,
		KindInconsistency: http.StatusInternalServerError,
		KindInternal:      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("%s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := Gateway("payment authorization failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable through Unwrap")
	}
}
