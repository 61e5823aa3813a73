package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/autodms/funnel/pkg/config"
	"github.com/autodms/funnel/pkg/logging"
	"github.com/autodms/funnel/pkg/telemetry"
)

// HTTPClient implements Client against the platform's HTTP API
type HTTPClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewHTTPClient creates a new platform HTTP client. Write calls are
// routed through a circuit breaker so a broken platform does not keep
// absorbing send attempts.
func NewHTTPClient(cfg *config.PlatformConfig) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("platform_url is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "platform-client"))

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "platform-writes",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	client := &HTTPClient{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}

	logger.Info("Platform client initialized", zap.String("url", cfg.URL))

	return client, nil
}

// ListRecentPosts returns an account's most recent posts, newest first
func (c *HTTPClient) ListRecentPosts(ctx context.Context, accountID string, limit int) ([]Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.list_recent_posts")
	defer span.End()

	params := url.Values{}
	params.Set("fields", "id,caption,timestamp,comments_count")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, accountID+"/media", params)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent posts for %s: %w", accountID, err)
	}

	var response struct {
		Data []Post `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal posts response: %w", err)
	}

	return response.Data, nil
}

// ListComments returns a bounded page of a post's comments, newest first
func (c *HTTPClient) ListComments(ctx context.Context, postID string, pageSize int) ([]Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.list_comments")
	defer span.End()

	params := url.Values{}
	params.Set("fields", "id,text,username,from,timestamp")
	params.Set("limit", strconv.Itoa(pageSize))

	body, err := c.get(ctx, postID+"/comments", params)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for post %s: %w", postID, err)
	}

	var response struct {
		Data []Comment `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal comments response: %w", err)
	}

	return response.Data, nil
}

// SendDirectMessage delivers a private message to the recipient
func (c *HTTPClient) SendDirectMessage(ctx context.Context, accountID, recipientID, recipientName, text string) error {
	ctx, span := telemetry.StartSpan(ctx, "platform.send_directed_message")
	defer span.End()

	payload := map[string]interface{}{
		"message": map[string]string{"text": text},
	}
	if recipientID != "" {
		payload["recipient"] = map[string]string{"id": recipientID}
	} else {
		payload["recipient"] = map[string]string{"username": recipientName}
	}

	if _, err := c.postWithBreaker(ctx, accountID+"/messages", payload); err != nil {
		return err
	}
	return nil
}

// ReplyToComment posts a public reply under a comment
func (c *HTTPClient) ReplyToComment(ctx context.Context, commentID, text string) error {
	ctx, span := telemetry.StartSpan(ctx, "platform.reply_to_comment")
	defer span.End()

	payload := map[string]interface{}{"message": text}

	if _, err := c.postWithBreaker(ctx, commentID+"/replies", payload); err != nil {
		return err
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + "/" + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req)
}

// postWithBreaker runs a write call through the circuit breaker.
// A tripped breaker surfaces as a retriable APIError.
func (c *HTTPClient) postWithBreaker(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, path, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &APIError{Code: 0, Message: "circuit breaker open", Retriable: true}
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		// Network-level failure: transient
		return nil, &APIError{Code: 0, Message: err.Error(), Retriable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Code: 0, Message: err.Error(), Retriable: true}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &RateLimitError{RetryAfter: retryAfter, Message: "HTTP 429"}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	return nil, classifyErrorBody(resp.StatusCode, body)
}

// classifyErrorBody maps the platform's error envelope to typed errors
func classifyErrorBody(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Message   string `json:"message"`
			Code      int    `json:"code"`
			ErrorData struct {
				RetryAfter int `json:"retry_after"`
			} `json:"error_data"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != 0 {
		switch envelope.Error.Code {
		case codeRateLimited:
			retryAfter := time.Duration(envelope.Error.ErrorData.RetryAfter) * time.Second
			if retryAfter == 0 {
				retryAfter = 60 * time.Second
			}
			return &RateLimitError{RetryAfter: retryAfter, Message: envelope.Error.Message}
		case codeWindowClosed:
			return fmt.Errorf("%w: %s", ErrWindowClosed, envelope.Error.Message)
		default:
			return &APIError{
				Code:      envelope.Error.Code,
				Message:   envelope.Error.Message,
				Retriable: status >= 500,
			}
		}
	}

	return &APIError{
		Code:      status,
		Message:   fmt.Sprintf("HTTP %d: %s", status, truncate(string(body), 200)),
		Retriable: status >= 500,
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 60 * time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 60 * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
