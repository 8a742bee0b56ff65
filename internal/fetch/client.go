// Package fetch wraps the HTTP operations the pipeline needs: page GETs and
// streaming asset downloads with progress reporting.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrPageUnavailable reports a page GET that failed or returned a
	// non-2xx status.
	ErrPageUnavailable = errors.New("page unavailable")

	// ErrTransferFailed reports a failed asset download.
	ErrTransferFailed = errors.New("transfer failed")
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "hearthis-dl"
)

// Client performs all network I/O for the pipeline.
type Client struct {
	rc *resty.Client
}

// NewClient creates a Client with the default timeout and User-Agent.
func NewClient() *Client {
	return &Client{
		rc: resty.New().
			SetTimeout(defaultTimeout).
			SetHeader("User-Agent", defaultUserAgent),
	}
}

// GetPage fetches a rendered page and returns its HTML.
func (c *Client) GetPage(ctx context.Context, url string) (string, error) {
	resp, err := c.rc.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrPageUnavailable, url, err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("%w: %s: HTTP %d", ErrPageUnavailable, url, resp.StatusCode())
	}
	return string(resp.Body()), nil
}

// DownloadBytes fetches a small resource (cover art) fully into memory.
func (c *Client) DownloadBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.rc.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransferFailed, url, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrTransferFailed, url, resp.StatusCode())
	}
	return resp.Body(), nil
}

// DownloadFile streams a large resource to destPath, calling onProgress with
// (bytesWritten, totalExpected) as data arrives. Pass nil to disable
// progress tracking. The destination is created or truncated; on failure a
// partial file may remain at destPath and the caller is responsible for
// cleaning its staging paths.
func (c *Client) DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransferFailed, url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return fmt.Errorf("%w: %s: HTTP %d", ErrTransferFailed, url, resp.StatusCode())
	}

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrTransferFailed, destPath, err)
	}
	defer file.Close()

	var writer io.Writer = file
	if onProgress != nil {
		writer = &ProgressWriter{
			Writer:   file,
			Total:    resp.RawResponse.ContentLength,
			OnUpdate: onProgress,
		}
	}

	if _, err := io.Copy(writer, body); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransferFailed, url, err)
	}
	return nil
}

// ProgressWriter reports cumulative bytes after every Write to the wrapped
// writer. Total is -1 when the response carries no length.
type ProgressWriter struct {
	Writer   io.Writer
	Total    int64
	Written  int64
	OnUpdate func(written, total int64)
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}
