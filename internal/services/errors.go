package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrValidation marks malformed requests and unsupported upload types.
	ErrValidation = errors.New("validation error")
	// ErrPayloadTooLarge marks uploads that exceed the configured byte ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrNotFound marks missing input or output artifacts.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks a stage call that exceeded its timeout.
	ErrTimeout = errors.New("upstream timeout")
	// ErrUpstream marks a stage that returned a non-success response or
	// produced an unusable payload.
	ErrUpstream = errors.New("upstream failure")
	// ErrUnreachable marks connection-level failures reaching a stage.
	ErrUnreachable = errors.New("upstream unreachable")
	// ErrConfiguration marks unusable local configuration or filesystem state.
	ErrConfiguration = errors.New("configuration error")
	// ErrBestEffort marks failures of non-critical side effects (progress
	// publication, completion recording). Callers log these and move on.
	ErrBestEffort = errors.New("best-effort side effect failed")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrUpstream
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a classified error onto the gateway's response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsBestEffort reports whether the error belongs to the non-critical
// side-effect category and must never abort a pipeline.
func IsBestEffort(err error) bool {
	return errors.Is(err, ErrBestEffort)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
