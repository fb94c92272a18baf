package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIErrorStatusCodes(t *testing.T) {
	cases := map[*APIError]int{
		NewNotFoundError("gone"):                 http.StatusNotFound,
		NewInvalidArgumentError("bad", nil):      http.StatusBadRequest,
		NewUpstreamError("wiki down", nil):       http.StatusBadGateway,
		NewCacheError("all tiers failing", nil):  http.StatusServiceUnavailable,
		{Type: "mystery", Message: "unexpected"}: http.StatusInternalServerError,
	}
	for apiErr, want := range cases {
		if got := apiErr.HTTPStatusCode(); got != want {
			t.Errorf("%s: status = %d, want %d", apiErr.Type, got, want)
		}
	}
}

func TestAPIErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewCacheError("flushing cache failed", cause)

	wrapped := fmt.Errorf("clearing cache: %w", err)

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("expected errors.As to find the APIError")
	}
	if apiErr.Type != ErrorTypeCache {
		t.Errorf("unexpected type %s", apiErr.Type)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected the original cause to remain reachable")
	}
}

func TestAPIErrorToJSON(t *testing.T) {
	body := NewNotFoundError("item \"X\" not found").ToJSON()

	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected shape: %v", body)
	}
	if errObj["type"] != ErrorTypeNotFound || errObj["message"] != "item \"X\" not found" {
		t.Errorf("unexpected body: %v", errObj)
	}
	if _, leaked := errObj["err"]; leaked {
		t.Error("internal error must not be exposed")
	}
}
