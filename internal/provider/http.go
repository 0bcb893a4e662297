package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/logger"
)

type baseClient struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	http    *http.Client
	metrics *Metrics
	log     *logger.Logger
}

// Model returns the model identifier requests are sent to
func (c *baseClient) Model() string {
	return c.model
}

// HTTPError is a non-2xx upstream response
type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "upstream http error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("upstream http error: status=%d message=%s", e.StatusCode, msg)
}

// errorEnvelope matches {"error":{"message":...}} bodies from both backends.
type errorEnvelope struct {
	Error *struct {
		Message string          `json:"message"`
		Status  string          `json:"status,omitempty"`
		Code    json.RawMessage `json:"code,omitempty"`
	} `json:"error,omitempty"`
}

func (e errorEnvelope) message() string {
	if e.Error == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Error.Message)
	if s := strings.TrimSpace(e.Error.Status); s != "" && !strings.Contains(msg, s) {
		msg = strings.TrimSpace(msg + " (" + s + ")")
	}
	return msg
}

func (e errorEnvelope) code() int {
	if e.Error == nil || len(e.Error.Code) == 0 {
		return 0
	}
	var n int
	if json.Unmarshal(e.Error.Code, &n) == nil {
		return n
	}
	return 0
}

func parseHTTPError(status int, raw []byte) *HTTPError {
	body := strings.TrimSpace(string(raw))
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.message() != "" {
		return &HTTPError{StatusCode: status, Message: env.message(), Body: body}
	}
	return &HTTPError{StatusCode: status, Body: body}
}

func (c *baseClient) doJSON(ctx context.Context, url string, headers map[string]string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return apperr.Wrap(err, apperr.KindTransport, "encode request")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return apperr.Wrap(err, apperr.KindTransport, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(0, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		httpErr := parseHTTPError(resp.StatusCode, raw)
		return classify(resp.StatusCode, httpErr.Message+" "+httpErr.Body, httpErr)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(resp.StatusCode, err.Error(), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(err, apperr.KindTransport, "decode provider response")
	}
	return nil
}

// classify maps an upstream failure to RateLimit or Transport. A 429 status
// or a quota / resource exhaustion message is a rate limit.
func classify(status int, message string, cause error) error {
	if status == http.StatusTooManyRequests || isQuotaMessage(message) {
		return apperr.Wrap(cause, apperr.KindRateLimit, "provider quota exhausted").WithHint(apperr.RateLimitHint)
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return apperr.Wrap(cause, apperr.KindTransport, "provider request cancelled")
	}
	return apperr.Wrap(cause, apperr.KindTransport, "provider request failed")
}

func isQuotaMessage(msg string) bool {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "quota"):
		return true
	case strings.Contains(m, "resource_exhausted"), strings.Contains(m, "resource exhausted"), strings.Contains(m, "resource has been exhausted"):
		return true
	case strings.Contains(m, "rate limit"), strings.Contains(m, "rate-limit"):
		return true
	default:
		return false
	}
}

func (c *baseClient) observe(provider string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		c.log.Warn("provider call failed", "model", c.model, "outcome", outcome, "error", err)
	} else {
		c.log.Debug("provider call finished", "model", c.model, "elapsed", time.Since(start))
	}
	c.metrics.observe(provider, outcome, time.Since(start))
}
