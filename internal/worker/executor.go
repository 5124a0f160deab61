package worker

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/requestid"
)

// ExecutionResult is the opaque pipeline executor's verdict on one attempt.
// The core never inspects *why* in more depth than this: classification
// into success/retryable/terminal is the executor's job, not the worker
// loop's own branching.
type ExecutionResult struct {
	Outcome domain.Outcome
	Output  string
	Err     error
}

// Executor runs a task's opaque payload for one attempt and returns an
// explicit outcome. Implementations must not block past ctx's deadline.
type Executor interface {
	Execute(ctx context.Context, task *domain.Task, attempt int) ExecutionResult
}

// webhookPayload is the shape the default HTTPExecutor expects inside
// Task.Payload — a declarative webhook call (method/url/headers/body/timeout).
type webhookPayload struct {
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers"`
	Body           string            `json:"body"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

// HTTPExecutor is the default pipeline executor: it interprets the task
// payload as a webhook call and classifies the outcome from the transport
// error / status code.
type HTTPExecutor struct {
	client *http.Client
	logger *slog.Logger
}

func NewHTTPExecutor(logger *slog.Logger) *HTTPExecutor {
	return &HTTPExecutor{
		client: &http.Client{
			Timeout: 5 * time.Minute, // safety net; per-call timeout is enforced via context
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		logger: logger.With("component", "executor"),
	}
}

func (e *HTTPExecutor) Execute(ctx context.Context, task *domain.Task, attempt int) ExecutionResult {
	var payload webhookPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return ExecutionResult{Outcome: domain.OutcomeTerminalFailure, Err: fmt.Errorf("decode payload: %w", err)}
	}
	if payload.Method == "" || payload.URL == "" {
		return ExecutionResult{Outcome: domain.OutcomeTerminalFailure, Err: fmt.Errorf("payload missing method or url")}
	}

	timeout := 30 * time.Second
	if payload.TimeoutSeconds > 0 {
		timeout = time.Duration(payload.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload.Body != "" {
		bodyReader = strings.NewReader(payload.Body)
	}

	req, err := http.NewRequestWithContext(ctx, payload.Method, payload.URL, bodyReader)
	if err != nil {
		return ExecutionResult{Outcome: domain.OutcomeTerminalFailure, Err: fmt.Errorf("build request: %w", err)}
	}
	for k, v := range payload.Headers {
		req.Header.Set(k, v)
	}

	reqID := requestid.New()
	req.Header.Set("X-Request-ID", reqID)
	ctx = requestid.WithRequestID(ctx, reqID)

	e.logger.InfoContext(ctx, "sending request",
		"task_id", task.ID, "attempt", attempt, "method", payload.Method, "url", payload.URL,
	)

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.ErrorContext(ctx, "request failed", "task_id", task.ID, "error", err, "duration", time.Since(start))
		return ExecutionResult{Outcome: domain.OutcomeRetryableFailure, Err: fmt.Errorf("do request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	e.logger.InfoContext(ctx, "received response",
		"task_id", task.ID, "status", resp.StatusCode, "duration", time.Since(start),
	)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return ExecutionResult{Outcome: domain.OutcomeSuccess, Output: string(body)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ExecutionResult{
			Outcome: domain.OutcomeTerminalFailure,
			Err:     fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	default:
		return ExecutionResult{
			Outcome: domain.OutcomeRetryableFailure,
			Err:     fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}
}
