package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetServiceErrorUnwraps(t *testing.T) {
	cause := stderrors.New("boom")
	wrapped := fmt.Errorf("handler: %w", NotFound("voucher not found", cause))

	se := GetServiceError(wrapped)
	if se == nil {
		t.Fatalf("expected service error")
	}
	if se.HTTPStatus != http.StatusNotFound || se.Code != CodeNotFound {
		t.Fatalf("unexpected error: %+v", se)
	}
	if !stderrors.Is(wrapped, cause) {
		t.Fatalf("cause not reachable through chain")
	}
	if GetServiceError(cause) != nil {
		t.Fatalf("plain error should not convert")
	}
}

func TestRateLimitDetails(t *testing.T) {
	se := RateLimitExceeded(10, "1s")
	if se.HTTPStatus != http.StatusTooManyRequests {
		t.Fatalf("status = %d", se.HTTPStatus)
	}
	if se.Details["limit"] != 10 || se.Details["window"] != "1s" {
		t.Fatalf("details = %v", se.Details)
	}
}
