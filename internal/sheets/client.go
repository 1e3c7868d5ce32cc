// Package sheets fetches knowledge-base tables from published Google
// Sheets, via the CSV or HTML export endpoint.
package sheets

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/corpix/uarand"

	apperrors "github.com/tanakritw/sheetqna-linebot-go/internal/errors"
)

const defaultBaseURL = "https://docs.google.com"

// Client fetches sheet exports over HTTP with retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a sheet export client. maxRetries counts retries
// after the first attempt; 0 means try once.
func NewClient(timeout time.Duration, maxRetries int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:    defaultBaseURL,
		maxRetries: maxRetries,
		retryDelay: 1 * time.Second,
	}
}

// SetBaseURL points the client at a different host. Used in tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// exportURL builds the gviz export URL for one worksheet.
func (c *Client) exportURL(sheetID, table, format string) string {
	return fmt.Sprintf("%s/spreadsheets/d/%s/gviz/tq?tqx=out:%s&sheet=%s",
		c.baseURL, url.PathEscape(sheetID), format, url.QueryEscape(table))
}

// get performs a GET with retry and backoff. Caller closes the body.
func (c *Client) get(ctx context.Context, reqURL string) (*http.Response, error) {
	var resp *http.Response

	err := RetryWithBackoff(ctx, c.maxRetries, c.retryDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("User-Agent", uarand.GetRandom())
		req.Header.Set("Accept", "text/csv,text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Encoding", "gzip, deflate")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_ = resp.Body.Close()

			ferr := apperrors.NewFetchError(reqURL, resp.StatusCode, nil)
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return ferr
			case resp.StatusCode >= 500:
				return ferr
			default: // 4xx: published sheets never recover by retrying
				return Permanent(ferr)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// bodyReader unwraps a gzip-compressed response body. The returned
// cleanup func must run after reading.
func bodyReader(resp *http.Response) (io.Reader, func(), error) {
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	}
	return resp.Body, func() {}, nil
}
