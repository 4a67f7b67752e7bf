package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/spaghettifunk/anima-avatar/engine/assets/loaders"
	"github.com/spaghettifunk/anima-avatar/engine/core"
)

// ClientConfig configures the HTTP provider.
type ClientConfig struct {
	// Timeout for a single attempt. Zero means no timeout; cancellation then
	// only comes from the caller's context.
	Timeout time.Duration

	// MaxRetries after a transport error or a 5xx response. Zero disables
	// retries, a negative value picks the default (2).
	MaxRetries int

	// RateLimit in requests per second (default: 2).
	RateLimit float64

	// RateBurst maximum burst size (default: 1).
	RateBurst int

	// MaxBytes refuses bodies above this size (default: 256 MiB).
	MaxBytes int64

	// UserAgent string (default: "anima-avatar/1.0").
	UserAgent string

	// Headers to add to all requests.
	Headers map[string]string

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxRetries: 2,
		RateLimit:  2.0,
		RateBurst:  1,
		MaxBytes:   256 << 20,
		UserAgent:  "anima-avatar/1.0",
		Headers:    make(map[string]string),
	}
}

// HTTPProvider is a rate-limited, retrying downloader for http(s) sources.
type HTTPProvider struct {
	config      *ClientConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	backoff     time.Duration
}

// NewHTTPProvider fills the unset fields of a copy of config; the caller's
// value is never modified.
func NewHTTPProvider(config *ClientConfig) *HTTPProvider {
	defaults := DefaultClientConfig()
	if config == nil {
		config = defaults
	} else {
		c := *config
		c.Headers = make(map[string]string, len(config.Headers))
		for k, v := range config.Headers {
			c.Headers[k] = v
		}
		config = &c
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RateLimit == 0 {
		config.RateLimit = defaults.RateLimit
	}
	if config.RateBurst == 0 {
		config.RateBurst = defaults.RateBurst
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = defaults.MaxBytes
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	return &HTTPProvider{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		backoff:     250 * time.Millisecond,
	}
}

func (hp *HTTPProvider) Download(ctx context.Context, uri *url.URL) (*Download, error) {
	var lastErr error
	for attempt := 0; attempt <= hp.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(hp.backoff * time.Duration(attempt)):
			}
			core.LogDebug("retrying download of '%s' (attempt %d/%d)", uri.Redacted(), attempt, hp.config.MaxRetries)
		}

		d, retry, err := hp.do(ctx, uri)
		if err == nil {
			return d, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			return d, err
		}
	}
	return nil, lastErr
}

// do performs one attempt and reports whether a failure is worth retrying.
func (hp *HTTPProvider) do(ctx context.Context, uri *url.URL) (*Download, bool, error) {
	if err := hp.rateLimiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", hp.config.UserAgent)
	req.Header.Set("Accept", "model/gltf-binary, model/gltf+json, application/octet-stream;q=0.9, */*;q=0.5")
	for k, v := range hp.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := hp.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", core.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	d := &Download{
		URI:         uri,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}
	if !d.Success() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return d, resp.StatusCode >= 500, fmt.Errorf("%w: %s returned %s", core.ErrDownloadFailed, uri.Redacted(), resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, hp.config.MaxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading body: %v", core.ErrDownloadFailed, err)
	}
	if int64(len(data)) > hp.config.MaxBytes {
		return nil, false, fmt.Errorf("%w: body larger than %d bytes", core.ErrDownloadFailed, hp.config.MaxBytes)
	}
	d.Data = data
	return d, false, nil
}

// FileProvider serves file:// URIs and plain paths.
type FileProvider struct {
	loader *loaders.BinaryLoader
}

func NewFileProvider(maxBytes int64) *FileProvider {
	return &FileProvider{loader: &loaders.BinaryLoader{MaxBytes: maxBytes}}
}

func (fp *FileProvider) Download(ctx context.Context, uri *url.URL) (*Download, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := localPath(uri)
	data, err := fp.loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDownloadFailed, err)
	}
	return &Download{URI: uri, Data: data}, nil
}

func localPath(uri *url.URL) string {
	if uri.Scheme == "file" {
		if uri.Host != "" && uri.Host != "localhost" {
			return "//" + uri.Host + uri.Path
		}
		return uri.Path
	}
	return uri.Path
}
