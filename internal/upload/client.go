package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"github.com/ppiankov/layerforge/internal/cache"
	"github.com/ppiankov/layerforge/internal/model"
	"github.com/ppiankov/layerforge/internal/util"
	"github.com/ppiankov/layerforge/internal/worker"
)

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 4096

// sleepFunc is the sleep used between attempts (injectable for tests)
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// File is one file in a pinned folder
type File struct {
	Name string // Path inside the pinned folder, e.g. "images/Forge#0.png"
	Data []byte
}

// PinMetadata is sent as the pinataMetadata form field
type PinMetadata struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues,omitempty"`
}

// Receipt is the pinning service's response
type Receipt struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Time parses the receipt timestamp
func (r *Receipt) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse receipt timestamp %q: %w", r.Timestamp, err)
	}
	return t, nil
}

// HTTPError is a non-2xx response from the pinning service
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("pinning service returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client pins folders of files with bounded retries
type Client struct {
	endpoint    string
	jwt         string
	httpClient  *http.Client
	limiter     *worker.Limiter
	receipts    cache.Cache // nil disables receipt reuse
	maxAttempts int
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) { client.httpClient = c }
}

// WithReceiptCache reuses receipts for payloads that were already pinned
func WithReceiptCache(c cache.Cache) Option {
	return func(client *Client) { client.receipts = c }
}

// NewClient creates a pinning client from configuration
func NewClient(cfg model.UploadConfig, creds Credentials, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("upload endpoint is required")
	}
	if creds.JWT == "" {
		return nil, ErrMissingCredentials
	}

	transport, err := util.NewTransport(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	c := &Client{
		endpoint:    cfg.Endpoint,
		jwt:         creds.JWT,
		httpClient:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
		limiter:     worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		maxAttempts: attempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Pin uploads files as one folder. Transport errors, 429 and 5xx responses
// are retried with exponential back-off up to the configured attempts.
func (c *Client) Pin(ctx context.Context, files []File, meta PinMetadata) (*Receipt, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("nothing to upload")
	}

	body, contentType, err := encodeForm(files, meta)
	if err != nil {
		return nil, err
	}

	key := cache.Key("receipt", payloadDigest(files, meta))
	if c.receipts != nil {
		if data, ok := c.receipts.Get(key); ok {
			var receipt Receipt
			if err := json.Unmarshal(data, &receipt); err == nil && receipt.IpfsHash != "" {
				return &receipt, nil
			}
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			if err := sleepFunc(ctx, backoff); err != nil {
				return nil, err
			}
		}

		receipt, raw, err := c.post(ctx, body, contentType)
		if err == nil {
			if c.receipts != nil {
				_ = c.receipts.Set(key, raw, 0)
			}
			return receipt, nil
		}

		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}

	return nil, fmt.Errorf("upload %q failed after %d attempt(s): %w", meta.Name, c.maxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte, contentType string) (*Receipt, []byte, error) {
	if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	if receipt.IpfsHash == "" {
		return nil, nil, fmt.Errorf("response has no IpfsHash")
	}
	return &receipt, raw, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return true
}

func encodeForm(files []File, meta PinMetadata) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		part, err := w.CreateFormFile("file", f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write form file: %w", err)
		}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("marshal pin metadata: %w", err)
	}
	if err := w.WriteField("pinataMetadata", string(metaJSON)); err != nil {
		return nil, "", fmt.Errorf("write pin metadata: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

// payloadDigest identifies a payload independently of the multipart boundary
func payloadDigest(files []File, meta PinMetadata) []byte {
	var buf bytes.Buffer
	buf.WriteString(meta.Name)
	keys := make([]string, 0, len(meta.KeyValues))
	for k := range meta.KeyValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "\x00%s=%s", k, meta.KeyValues[k])
	}
	for _, f := range files {
		fmt.Fprintf(&buf, "\x00%s\x00%d\x00", f.Name, len(f.Data))
		buf.Write(f.Data)
	}
	return buf.Bytes()
}
