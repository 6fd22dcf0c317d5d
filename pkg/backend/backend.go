// Package backend is the thin HTTP client for the lead-management functions:
// quote id issuance, lead persistence, and email notification. Every request
// carries the authorization code as a query parameter and a bounded timeout.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
)

var (
	ErrTimeout     = errors.New("backend call timed out")
	ErrHTTPStatus  = errors.New("backend returned non-success status")
	ErrBadResponse = errors.New("backend response is malformed")
)

const maxResponseSizeBytes = 1 << 20

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	Code    string        `envconfig:"CODE" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

type Client struct {
	baseURL    string
	code       string
	httpClient *http.Client
}

var _ contractx.LeadBackend = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	code := strings.TrimSpace(cfg.Code)
	if code == "" {
		return nil, errors.New("backend authorization code is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		code:       code,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type quoteIDResponse struct {
	QuoteID string `json:"quote_id"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GenerateQuoteID asks the issuance endpoint for a fresh quote id.
func (c *Client) GenerateQuoteID(ctx context.Context) (string, error) {
	raw, err := c.post(ctx, "/generate-quote-id", nil)
	if err != nil {
		return "", err
	}

	var parsed quoteIDResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode quote id: %v", ErrBadResponse, err)
	}
	quoteID := strings.TrimSpace(parsed.QuoteID)
	if quoteID == "" {
		return "", fmt.Errorf("%w: quote id is empty", ErrBadResponse)
	}
	return quoteID, nil
}

// SaveLead posts the completed lead record to the storage endpoint and
// returns the endpoint's message.
func (c *Client) SaveLead(ctx context.Context, lead contractx.Lead) (string, error) {
	raw, err := c.post(ctx, "/leads", lead)
	if err != nil {
		return "", err
	}
	return decodeMessage(raw)
}

type emailRequest struct {
	ToEmail  string `json:"to_email"`
	QuoteID  string `json:"quote_id"`
	FullName string `json:"full_name"`
}

// SendConfirmationEmail posts to the notification endpoint. The returned
// message contains the full rendered email and is surfaced verbatim.
func (c *Client) SendConfirmationEmail(ctx context.Context, toEmail, quoteID, fullName string) (string, error) {
	raw, err := c.post(ctx, "/send-email", emailRequest{
		ToEmail:  toEmail,
		QuoteID:  quoteID,
		FullName: fullName,
	})
	if err != nil {
		return "", err
	}
	return decodeMessage(raw)
}

func decodeMessage(raw []byte) (string, error) {
	var parsed statusResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode message: %v", ErrBadResponse, err)
	}
	if strings.TrimSpace(parsed.Message) == "" {
		return "", fmt.Errorf("%w: message is empty", ErrBadResponse)
	}
	return parsed.Message, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	endpoint := c.baseURL + path + "?code=" + url.QueryEscape(c.code)

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return nil, fmt.Errorf("execute backend request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrHTTPStatus, resp.StatusCode, string(raw))
	}
	return raw, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	return false
}
