package stock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"broll/internal/services"
	"broll/internal/services/retry"
)

const (
	defaultDownloadTimeout = 2 * time.Minute
	downloadAttempts       = 2
)

var errTooLarge = errors.New("download exceeds size limit")

// Downloader streams stock clips to local files.
type Downloader struct {
	httpClient *http.Client
	maxBytes   int64
	retry      retry.Policy
}

// DownloaderOption customizes a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadClient overrides the HTTP client.
func WithDownloadClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithDownloadSleeper overrides retry sleeps (useful for tests).
func WithDownloadSleeper(sleeper func(time.Duration)) DownloaderOption {
	return func(d *Downloader) {
		d.retry.Sleep = sleeper
	}
}

// NewDownloader returns a Downloader refusing bodies over maxBytes. A
// non-positive maxBytes disables the cap.
func NewDownloader(maxBytes int64, opts ...DownloaderOption) *Downloader {
	policy := retry.DefaultPolicy()
	policy.Attempts = downloadAttempts
	d := &Downloader{
		httpClient: &http.Client{Timeout: defaultDownloadTimeout},
		maxBytes:   maxBytes,
		retry:      policy,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads url to dest and returns the byte count. The file appears
// at dest only when the transfer completed; partial files are removed.
// Failures are tagged ErrStockFetch unless ctx ended.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) (int64, error) {
	if url == "" {
		return 0, services.Wrap(services.ErrStockFetch, stageName, "download", "empty url", nil)
	}
	var written int64
	err := d.retry.Do(ctx, "stock download", retry.Transient, func(int) error {
		n, err := d.fetchOnce(ctx, url, dest)
		written = n
		return err
	})
	if err != nil {
		if ctxErr := services.FromContext(ctx, stageName); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, services.Wrap(services.ErrStockFetch, stageName, "download", filepath.Base(dest), err)
	}
	return written, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return 0, retry.NewStatusError("stock download", resp, body)
	}
	if d.maxBytes > 0 && resp.ContentLength > d.maxBytes {
		return 0, fmt.Errorf("%w: content-length %d > %d", errTooLarge, resp.ContentLength, d.maxBytes)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create destination dir: %w", err)
	}
	partial := dest + ".part"
	file, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", partial, err)
	}

	reader := io.Reader(resp.Body)
	if d.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	n, copyErr := io.Copy(file, reader)
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		err = fmt.Errorf("copy body: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close %s: %w", partial, closeErr)
	case d.maxBytes > 0 && n > d.maxBytes:
		err = fmt.Errorf("%w: more than %d bytes", errTooLarge, d.maxBytes)
	case n == 0:
		err = errors.New("empty body")
	}
	if err != nil {
		_ = os.Remove(partial)
		return 0, err
	}
	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("finalize %s: %w", dest, err)
	}
	return n, nil
}
