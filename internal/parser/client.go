// Package parser wraps the external document-parsing service that turns
// an uploaded PDF into ordered per-page text.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/complexlabs/docchat/internal/retry"
)

// Page is one parsed page of a document, in source order.
type Page struct {
	Number int    `json:"page"`
	Text   string `json:"text"`
}

// Options control one parse invocation.
type Options struct {
	Workers int
	Timeout time.Duration
}

// DefaultOptions is the standard invocation; FallbackOptions is the
// conservative one tried once when the default ultimately fails.
var (
	DefaultOptions  = Options{Workers: 4, Timeout: 120 * time.Second}
	FallbackOptions = Options{Workers: 1, Timeout: 180 * time.Second}
)

// DefaultRetryPolicy bounds each invocation: 2 attempts, 2s delay, x2 backoff.
var DefaultRetryPolicy = retry.Policy{Attempts: 2, Delay: 2 * time.Second, Backoff: 2}

// ErrJobFailed is returned when the parse service reports a failed job.
var ErrJobFailed = errors.New("parse job failed")

// Client talks to the parse service's job API: upload a file, poll the
// job, fetch per-page text.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	retryPolicy  retry.Policy
	pollInterval time.Duration
}

// Config holds parse service connection settings.
type Config struct {
	BaseURL      string
	APIKey       string
	RetryPolicy  *retry.Policy
	PollInterval time.Duration
}

// NewClient creates a parse service client.
func NewClient(cfg Config) *Client {
	policy := DefaultRetryPolicy
	if cfg.RetryPolicy != nil {
		policy = *cfg.RetryPolicy
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{},
		retryPolicy:  policy,
		pollInterval: pollInterval,
	}
}

// Parse runs one retried invocation against the parse service and returns
// the document's pages in order.
func (c *Client) Parse(ctx context.Context, path string, opts Options) ([]Page, error) {
	var pages []Page
	err := c.retryPolicy.Do(ctx, func(ctx context.Context) error {
		var err error
		pages, err = c.parseOnce(ctx, path, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// ParseWithFallback tries the default invocation and, if it ultimately
// fails, retries once with reduced parallelism and a longer timeout.
func (c *Client) ParseWithFallback(ctx context.Context, path string) ([]Page, error) {
	pages, err := c.Parse(ctx, path, DefaultOptions)
	if err == nil {
		return pages, nil
	}

	log.Printf("parser: default invocation failed, falling back to %d worker(s): %v",
		FallbackOptions.Workers, err)

	pages, fallbackErr := c.Parse(ctx, path, FallbackOptions)
	if fallbackErr != nil {
		return nil, fmt.Errorf("parse failed after fallback: %w", fallbackErr)
	}
	return pages, nil
}

func (c *Client) parseOnce(ctx context.Context, path string, opts Options) ([]Page, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultOptions.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	jobID, err := c.uploadFile(ctx, path, opts)
	if err != nil {
		return nil, err
	}

	if err := c.awaitJob(ctx, jobID); err != nil {
		return nil, err
	}

	return c.fetchResult(ctx, jobID)
}

type jobStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (c *Client) uploadFile(ctx context.Context, path string, opts Options) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.WriteField("num_workers", strconv.Itoa(opts.Workers)); err != nil {
		return "", err
	}
	if err := writer.WriteField("language", "en"); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/parsing/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var status jobStatus
	if err := c.doJSON(req, &status); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	if status.ID == "" {
		return "", errors.New("parse service returned no job id")
	}
	return status.ID, nil
}

func (c *Client) awaitJob(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/api/parsing/job/%s", c.baseURL, jobID), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		var status jobStatus
		if err := c.doJSON(req, &status); err != nil {
			return fmt.Errorf("job poll failed: %w", err)
		}

		switch status.Status {
		case "SUCCESS":
			return nil
		case "ERROR":
			if status.Error != "" {
				return fmt.Errorf("%w: %s", ErrJobFailed, status.Error)
			}
			return ErrJobFailed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchResult(ctx context.Context, jobID string) ([]Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/parsing/job/%s/result/text", c.baseURL, jobID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var result struct {
		Pages []Page `json:"pages"`
	}
	if err := c.doJSON(req, &result); err != nil {
		return nil, fmt.Errorf("result fetch failed: %w", err)
	}
	return result.Pages, nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("parse service returned %d: %s", resp.StatusCode, string(raw))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
