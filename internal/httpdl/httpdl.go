// Package httpdl streams remote files to disk over HTTP.
package httpdl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultChunkSize is the copy buffer size used while streaming.
	DefaultChunkSize = 8192
	// DefaultDriveBaseURL is the Google Drive download host.
	DefaultDriveBaseURL = "https://drive.google.com"

	driveWarningCookie = "download_warning"
	userAgent          = "auddy/1.0"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Config holds configuration for the downloader
type Config struct {
	ChunkSize    int
	DriveBaseURL string
	HTTPClient   *http.Client
}

// Client downloads files with a streaming copy of fixed-size chunks.
type Client struct {
	http         *http.Client
	chunkSize    int
	driveBaseURL string
}

// New creates a Client. No overall timeout is applied; callers bound the
// download through ctx.
func New(cfg Config) *Client {
	c := &Client{
		http:         cfg.HTTPClient,
		chunkSize:    cfg.ChunkSize,
		driveBaseURL: strings.TrimRight(cfg.DriveBaseURL, "/"),
	}
	if c.http == nil {
		c.http = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 60 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}
	if c.chunkSize <= 0 {
		c.chunkSize = DefaultChunkSize
	}
	if c.driveBaseURL == "" {
		c.driveBaseURL = DefaultDriveBaseURL
	}
	return c
}

// Download fetches rawURL into dst and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, rawURL, dst string) (int64, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return 0, fmt.Errorf("invalid download url %q", rawURL)
	}

	resp, err := c.get(ctx, c.http, parsed.String())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{URL: parsed.String(), StatusCode: resp.StatusCode}
	}
	return c.save(resp.Body, dst)
}

// DownloadDrive fetches a Google Drive file by id. Large files answer the
// first request with a download_warning cookie; the token it carries is sent
// back as confirm= on a second request that returns the bytes.
func (c *Client) DownloadDrive(ctx context.Context, fileID, dst string) (int64, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return 0, err
	}
	client := *c.http
	client.Jar = jar

	base := c.driveBaseURL + "/uc?export=download&id=" + url.QueryEscape(fileID)
	resp, err := c.get(ctx, &client, base)
	if err != nil {
		return 0, err
	}

	if token := confirmToken(resp, jar); token != "" {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		resp, err = c.get(ctx, &client, base+"&confirm="+url.QueryEscape(token))
		if err != nil {
			return 0, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{URL: base, StatusCode: resp.StatusCode}
	}
	return c.save(resp.Body, dst)
}

func confirmToken(resp *http.Response, jar http.CookieJar) string {
	for _, ck := range resp.Cookies() {
		if strings.HasPrefix(ck.Name, driveWarningCookie) {
			return ck.Value
		}
	}
	if resp.Request != nil {
		for _, ck := range jar.Cookies(resp.Request.URL) {
			if strings.HasPrefix(ck.Name, driveWarningCookie) {
				return ck.Value
			}
		}
	}
	return ""
}

func (c *Client) get(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return client.Do(req)
}

func (c *Client) save(body io.Reader, dst string) (int64, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	n, err := io.CopyBuffer(f, body, make([]byte, c.chunkSize))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return n, fmt.Errorf("write %s: %w", dst, err)
	}
	return n, nil
}
