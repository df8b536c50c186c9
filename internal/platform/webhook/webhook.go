// Package webhook posts signed JSON events to a single configured endpoint.
// The body is signed with HMAC-SHA256 and sent in the X-Webhook-Signature
// header as "sha256=<hex>".
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope delivered to the endpoint.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Delivery records the outcome of sending one event.
type Delivery struct {
	EventID    string
	StatusCode int
	Attempts   int
	Duration   time.Duration
}

func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetryDelays sets the wait before each retry. The number of delays is
// the number of retries.
func WithRetryDelays(d ...time.Duration) Option {
	return func(cl *Client) { cl.retryDelays = d }
}

// Backoff returns retries delays, starting at base and doubling.
func Backoff(base time.Duration, retries int) []time.Duration {
	if retries < 0 {
		retries = 0
	}
	delays := make([]time.Duration, 0, retries)
	for i := 0; i < retries; i++ {
		delays = append(delays, base<<i)
	}
	return delays
}

type Client struct {
	url         string
	secret      string
	httpClient  *http.Client
	retryDelays []time.Duration
	now         func() time.Time
}

func NewClient(rawURL, secret string, opts ...Option) (*Client, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	c := &Client{
		url:         rawURL,
		secret:      secret,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{500 * time.Millisecond, 2 * time.Second},
		now:         time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("webhook url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url must include a host")
	}
	return nil
}

// Send wraps payload in an Event and posts it, retrying on transport errors
// and non-2xx responses until the retry delays are exhausted or ctx is done.
func (c *Client) Send(ctx context.Context, eventType string, payload any) (*Delivery, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   raw,
		Timestamp: c.now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook event: %w", err)
	}

	d := &Delivery{EventID: event.ID}
	start := time.Now()
	defer func() { d.Duration = time.Since(start) }()

	for {
		d.Attempts++
		d.StatusCode, err = c.post(ctx, event, body)
		if err == nil {
			return d, nil
		}
		if d.Attempts > len(c.retryDelays) {
			return d, err
		}
		select {
		case <-ctx.Done():
			return d, ctx.Err()
		case <-time.After(c.retryDelays[d.Attempts-1]):
		}
	}
}

func (c *Client) post(ctx context.Context, event Event, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", "sha256="+SignPayload(body, c.secret))
	req.Header.Set("X-Webhook-ID", event.ID)
	req.Header.Set("X-Webhook-Event", event.Type)
	req.Header.Set("X-Webhook-Timestamp", event.Timestamp.Format(time.RFC3339))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
