// Package search wraps the hosted document-search capability: upload a
// document, get back an opaque store handle, and run semantic searches
// scoped to that corpus. The index itself is a hosted vector store; nothing
// here implements retrieval.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
)

var (
	ErrUploadFailed   = errors.New("document upload failed")
	ErrStoreNotReady  = errors.New("vector store processing did not complete")
	ErrSearchFailed   = errors.New("vector store search failed")
	ErrHandleRequired = errors.New("vector store handle is required")
)

type Config struct {
	BaseURL      string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey       string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	TopK         int           `envconfig:"TOP_K" split_words:"true" default:"4"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" split_words:"true" default:"2s"`
	MaxWait      time.Duration `envconfig:"MAX_WAIT" split_words:"true" default:"60s"`
}

// Client manages FAQ corpora on the hosted vector-store service.
type Client struct {
	sdk          *openaisdk.Client
	topK         int
	pollInterval time.Duration
	maxWait      time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("vector store api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	sdk := openaisdk.NewClient(opts...)

	topK := cfg.TopK
	if topK <= 0 {
		topK = 4
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = time.Minute
	}

	return &Client{
		sdk:          &sdk,
		topK:         topK,
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}, nil
}

// Upload stores a document, builds a vector store over it, and blocks until
// the store finishes processing. The returned handle scopes later searches.
func (c *Client) Upload(ctx context.Context, name string, content []byte) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(content) == 0 {
		return "", fmt.Errorf("%w: document name and content are required", ErrUploadFailed)
	}

	file, err := c.sdk.Files.New(ctx, openaisdk.FileNewParams{
		File:    openaisdk.File(bytes.NewReader(content), name, "application/octet-stream"),
		Purpose: openaisdk.FilePurposeAssistants,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	store, err := c.sdk.VectorStores.New(ctx, openaisdk.VectorStoreNewParams{
		Name:    openaisdk.String(name),
		FileIDs: []string{file.ID},
	})
	if err != nil {
		return "", fmt.Errorf("%w: create store: %v", ErrUploadFailed, err)
	}

	if err := c.waitReady(ctx, store.ID); err != nil {
		return "", err
	}
	return store.ID, nil
}

func (c *Client) waitReady(ctx context.Context, handle string) error {
	deadline := time.NewTimer(c.maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		store, err := c.sdk.VectorStores.Get(ctx, handle)
		if err != nil {
			return fmt.Errorf("%w: poll store=%s: %v", ErrStoreNotReady, handle, err)
		}
		switch store.Status {
		case "completed":
			if store.FileCounts.Failed > 0 {
				return fmt.Errorf("%w: store=%s has %d failed files", ErrStoreNotReady, handle, store.FileCounts.Failed)
			}
			return nil
		case "expired":
			return fmt.Errorf("%w: store=%s expired", ErrStoreNotReady, handle)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrStoreNotReady, ctx.Err())
		case <-deadline.C:
			return fmt.Errorf("%w: store=%s still %s after %s", ErrStoreNotReady, handle, store.Status, c.maxWait)
		case <-ticker.C:
		}
	}
}

// Index returns a SearchIndex scoped to one uploaded corpus.
func (c *Client) Index(handle string) (contractx.SearchIndex, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrHandleRequired
	}
	return &scopedIndex{client: c, handle: handle}, nil
}

type scopedIndex struct {
	client *Client
	handle string
}

func (s *scopedIndex) Search(ctx context.Context, query string) ([]contractx.Snippet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	page, err := s.client.sdk.VectorStores.Search(ctx, s.handle, openaisdk.VectorStoreSearchParams{
		Query:         openaisdk.VectorStoreSearchParamsQueryUnion{OfString: openaisdk.String(query)},
		MaxNumResults: openaisdk.Int(int64(s.client.topK)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: store=%s: %v", ErrSearchFailed, s.handle, err)
	}

	var snippets []contractx.Snippet
	for _, result := range page.Data {
		for _, chunk := range result.Content {
			text := strings.TrimSpace(chunk.Text)
			if text == "" {
				continue
			}
			snippets = append(snippets, contractx.Snippet{Text: text, Score: result.Score})
		}
	}
	return snippets, nil
}
