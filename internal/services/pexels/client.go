package pexels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"broll/internal/services/retry"
)

const (
	defaultBaseURL     = "https://api.pexels.com"
	defaultHTTPTimeout = 30 * time.Second
	serviceName        = "stock"
	maxErrorBody       = 4 << 10
)

// Config captures the settings required to talk to Pexels.
type Config struct {
	APIKey            string
	BaseURL           string
	TimeoutSeconds    int
	RequestsPerMinute int
	RetryAttempts     int
}

// Client searches the Pexels video catalogue.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retry.Policy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter replaces the request limiter. A nil limiter disables pacing.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.BaseDelay = baseDelay
		c.retry.MaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.retry.Sleep = sleeper
	}
}

// NewClient constructs a Pexels client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	policy := retry.DefaultPolicy()
	if cfg.RetryAttempts > 0 {
		policy.Attempts = cfg.RetryAttempts
	}
	client := &Client{
		cfg: Config{
			APIKey:            strings.TrimSpace(cfg.APIKey),
			BaseURL:           strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds:    cfg.TimeoutSeconds,
			RequestsPerMinute: cfg.RequestsPerMinute,
			RetryAttempts:     policy.Attempts,
		},
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(cfg.RequestsPerMinute),
		retry:      policy,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	burst := max(1, perMinute/60)
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
}

// SearchQuery selects videos for one keyword.
type SearchQuery struct {
	Query       string
	Orientation string
	Size        string
	PerPage     int
}

// SearchResponse is the subset of the search payload the pipeline reads.
type SearchResponse struct {
	Page         int     `json:"page"`
	PerPage      int     `json:"per_page"`
	TotalResults int     `json:"total_results"`
	Videos       []Video `json:"videos"`
}

// Video is one search hit.
type Video struct {
	ID         int64       `json:"id"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Duration   float64     `json:"duration"`
	URL        string      `json:"url"`
	Image      string      `json:"image"`
	VideoFiles []VideoFile `json:"video_files"`
}

// VideoFile is one rendition of a Video.
type VideoFile struct {
	ID       int64   `json:"id"`
	Quality  string  `json:"quality"`
	FileType string  `json:"file_type"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Link     string  `json:"link"`
}

// SearchVideos runs a video search. Empty result sets are not errors.
func (c *Client) SearchVideos(ctx context.Context, query SearchQuery) (SearchResponse, error) {
	var empty SearchResponse
	term := strings.TrimSpace(query.Query)
	if term == "" {
		return empty, errors.New("stock search: query required")
	}
	if c.cfg.APIKey == "" {
		return empty, errors.New("stock search: api key required")
	}
	endpoint, err := c.searchURL(term, query)
	if err != nil {
		return empty, err
	}

	var result SearchResponse
	err = c.retry.Do(ctx, "stock search", retry.Transient, func(int) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		decoded, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
		result = decoded
		return nil
	})
	if err != nil {
		return empty, err
	}
	return result, nil
}

// HealthCheck issues a one-result search to verify the API key.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("stock health: api key required")
	}
	endpoint, err := c.searchURL("nature", SearchQuery{PerPage: 1})
	if err != nil {
		return err
	}
	if _, err := c.get(ctx, endpoint); err != nil {
		return fmt.Errorf("stock health: %w", err)
	}
	return nil
}

func (c *Client) searchURL(term string, query SearchQuery) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL + "/videos/search")
	if err != nil {
		return "", fmt.Errorf("stock search: parse base url: %w", err)
	}
	perPage := query.PerPage
	if perPage <= 0 {
		perPage = 1
	}
	values := url.Values{}
	values.Set("query", term)
	if o := strings.TrimSpace(query.Orientation); o != "" {
		values.Set("orientation", o)
	}
	if s := strings.TrimSpace(query.Size); s != "" {
		values.Set("size", s)
	}
	values.Set("per_page", strconv.Itoa(perPage))
	base.RawQuery = values.Encode()
	return base.String(), nil
}

func (c *Client) get(ctx context.Context, endpoint string) (SearchResponse, error) {
	var empty SearchResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, fmt.Errorf("stock search: build request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("stock search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return empty, retry.NewStatusError(serviceName, resp, body)
	}
	var decoded SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return empty, fmt.Errorf("stock search: decode response: %w", err)
	}
	return decoded, nil
}

// maxPreferredEdge keeps downloads at or below 1080p-class renditions.
const maxPreferredEdge = 1920

// BestFile picks the rendition to download: MP4 before other containers,
// renditions no larger than 1920px on either edge, then the largest frame.
// It reports false when v has no usable link.
func (v Video) BestFile() (VideoFile, bool) {
	var best VideoFile
	found := false
	for _, file := range v.VideoFiles {
		if strings.TrimSpace(file.Link) == "" {
			continue
		}
		if !found || betterFile(file, best) {
			best = file
			found = true
		}
	}
	return best, found
}

func betterFile(candidate, current VideoFile) bool {
	candMP4 := isMP4(candidate.FileType)
	currMP4 := isMP4(current.FileType)
	if candMP4 != currMP4 {
		return candMP4
	}
	candFits := max(candidate.Width, candidate.Height) <= maxPreferredEdge
	currFits := max(current.Width, current.Height) <= maxPreferredEdge
	if candFits != currFits {
		return candFits
	}
	return candidate.Width*candidate.Height > current.Width*current.Height
}

func isMP4(fileType string) bool {
	return strings.EqualFold(strings.TrimSpace(fileType), "video/mp4")
}
