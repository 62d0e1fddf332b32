package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recap/internal/logging"
	"recap/internal/services"
)

// Call describes one stage invocation.
type Call struct {
	Name    string
	URL     string
	Payload any
	Timeout time.Duration
}

// Client sends stage requests as single synchronous POSTs.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (useful for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a dispatch client. Per-call timeouts come from the
// Call, so the underlying HTTP client carries none of its own.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{},
		logger:     logging.NewComponentLogger(logger, "dispatch"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type httpStatusError struct {
	Stage      string
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Stage, e.StatusCode, strings.TrimSpace(e.Body))
}

// Do sends call.Payload to call.URL and waits up to call.Timeout for the JSON
// response. Failure classification, each tagged with the stage name:
//   - services.ErrTimeout: the request exceeded call.Timeout
//   - services.ErrUpstream: the stage answered with a non-2xx status (the
//     error carries status code and response body) or an undecodable body
//   - services.ErrUnreachable: connection-level failure (DNS, refused, reset)
func (c *Client) Do(ctx context.Context, call Call) (json.RawMessage, error) {
	encoded, err := json.Marshal(call.Payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, call.Name, "encode payload", "", err)
	}

	c.logger.Info("dispatching stage call",
		logging.String(logging.FieldStage, call.Name),
		logging.String("url", call.URL),
		logging.String("payload", string(encoded)),
		logging.Duration("timeout", call.Timeout),
	)

	callCtx := ctx
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, call.URL, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, call.Name, "build request", call.URL, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(call, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classifyTransportError(call, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &httpStatusError{Stage: call.Name, StatusCode: resp.StatusCode, Body: string(body)}
		c.logger.Error("stage returned error status",
			logging.String(logging.FieldStage, call.Name),
			logging.Int("status", resp.StatusCode),
			logging.String("body", strings.TrimSpace(string(body))),
		)
		return nil, services.Wrap(services.ErrUpstream, call.Name, "call", "", statusErr)
	}

	if !json.Valid(body) {
		return nil, services.Wrap(services.ErrUpstream, call.Name, "decode response", "invalid JSON", nil)
	}

	c.logger.Info("stage call succeeded", logging.String(logging.FieldStage, call.Name))
	return json.RawMessage(body), nil
}

func (c *Client) classifyTransportError(call Call, err error) error {
	if isTimeout(err) {
		c.logger.Error("stage call timed out",
			logging.String(logging.FieldStage, call.Name),
			logging.Duration("timeout", call.Timeout),
		)
		return services.Wrap(services.ErrTimeout, call.Name, "call",
			fmt.Sprintf("timed out after %s", call.Timeout), err)
	}
	c.logger.Error("stage unreachable",
		logging.String(logging.FieldStage, call.Name),
		logging.String("url", call.URL),
		logging.Error(err),
	)
	return services.Wrap(services.ErrUnreachable, call.Name, "call", call.URL, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}
