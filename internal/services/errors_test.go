package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrUnreachable, "diarize", "call", "dial failed", cause)

	if !errors.Is(err, ErrUnreachable) {
		t.Fatal("wrapped error lost its marker")
	}
	if !errors.Is(err, cause) {
		t.Fatal("wrapped error lost its cause")
	}
	for _, want := range []string{"diarize", "call", "dial failed"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error message missing %q: %s", want, err)
		}
	}
}

func TestWrapNilMarkerDefaultsToUpstream(t *testing.T) {
	err := Wrap(nil, "summarize", "decode", "", nil)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream marker, got %v", err)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Wrap(ErrValidation, "", "", "bad extension", nil), http.StatusBadRequest},
		{Wrap(ErrPayloadTooLarge, "", "", "", nil), http.StatusRequestEntityTooLarge},
		{Wrap(ErrNotFound, "summarize", "", "summary missing", nil), http.StatusNotFound},
		{Wrap(ErrTimeout, "transcribe", "", "", nil), http.StatusGatewayTimeout},
		{Wrap(ErrUpstream, "preprocess", "", "", nil), http.StatusInternalServerError},
		{Wrap(ErrUnreachable, "diarize", "", "", nil), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestIsBestEffort(t *testing.T) {
	err := Wrap(ErrBestEffort, "orchestrator", "record completion", "insert failed", errors.New("db closed"))
	if !IsBestEffort(err) {
		t.Fatal("expected best-effort classification")
	}
	if IsBestEffort(Wrap(ErrUpstream, "", "", "", nil)) {
		t.Fatal("upstream errors are not best-effort")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithTaskID(context.Background(), "task-1")
	ctx = WithStage(ctx, "transcribe")
	ctx = WithRequestID(ctx, "req-9")

	if id, ok := TaskIDFromContext(ctx); !ok || id != "task-1" {
		t.Fatalf("task id round trip failed: %q %v", id, ok)
	}
	if stage, ok := StageFromContext(ctx); !ok || stage != "transcribe" {
		t.Fatalf("stage round trip failed: %q %v", stage, ok)
	}
	if rid, ok := RequestIDFromContext(ctx); !ok || rid != "req-9" {
		t.Fatalf("request id round trip failed: %q %v", rid, ok)
	}

	if _, ok := TaskIDFromContext(context.Background()); ok {
		t.Fatal("empty context should not carry a task id")
	}
}
