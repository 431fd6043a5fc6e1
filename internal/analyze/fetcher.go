package analyze

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/utils"
)

const (
	// DefaultFetchTimeout bounds one page download including redirects.
	DefaultFetchTimeout = 10 * time.Second

	// maxPageBytes caps how much of a document is parsed.
	maxPageBytes = 2 << 20

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	ErrFetchTimeout   = errors.New("request timed out")
	ErrConnectFailed  = errors.New("connection failed")
	ErrUnsupportedURL = errors.New("unsupported url")
)

// HTTPStatusError is returned for any non-200 answer.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string { return fmt.Sprintf("HTTP %d", e.Code) }

// Fetcher downloads pages with browser-like headers.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a Fetcher whose requests give up after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Fetch downloads rawURL and extracts its Page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Page{}, ErrUnsupportedURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, classifyNetErr(err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Page{}, &HTTPStatusError{Code: resp.StatusCode}
	}

	page, err := ExtractPage(rawURL, io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, classifyNetErr(err)
	}
	return page, nil
}

func classifyNetErr(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrFetchTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrFetchTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ErrConnectFailed
	}
	return err
}
