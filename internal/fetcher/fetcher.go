package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
	"github.com/sirupsen/logrus"
)

// Fetcher retrieves one page. Every failure comes back as a *FetchError;
// it never panics into the caller.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DefaultUserAgent is a current desktop Chrome string.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultHeaders mimic a desktop browser opening the page directly.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "he-IL,he;q=0.9,en-US;q=0.8,en;q=0.7",
		"Cache-Control":             "max-age=0",
		"Connection":                "keep-alive",
		"DNT":                       "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
	}
}

// HTTPConfig configures HTTPFetcher.
type HTTPConfig struct {
	Timeout time.Duration
	// UserAgent is rotated per request when empty.
	UserAgent string
	Headers   map[string]string
}

// HTTPFetcher issues browser-like GETs through a colly collector.
type HTTPFetcher struct {
	collector *colly.Collector
	headers   http.Header
	rotateUA  bool
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewHTTPFetcher creates a fetcher. A zero timeout means 10 seconds.
func NewHTTPFetcher(cfg HTTPConfig, logger *logrus.Logger) *HTTPFetcher {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Headers == nil {
		cfg.Headers = DefaultHeaders()
	}

	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(cfg.Timeout)

	headers := http.Header{}
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	return &HTTPFetcher{
		collector: c,
		headers:   headers,
		rotateUA:  cfg.UserAgent == "",
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

type fetchOutcome struct {
	body   string
	status int
	err    error
}

// Fetch performs one GET bounded by the configured timeout.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify(url, 0, err)
	}

	// Each call gets its own clone so callbacks never leak between pages.
	c := f.collector.Clone()
	if f.rotateUA {
		extensions.RandomUserAgent(c)
	}

	var outcome fetchOutcome
	c.OnResponse(func(r *colly.Response) {
		outcome.status = r.StatusCode
		outcome.body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		outcome.status = r.StatusCode
		outcome.err = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Request(http.MethodGet, url, nil, colly.NewContext(), f.headers.Clone())
	}()

	var err error
	select {
	case <-ctx.Done():
		return "", classify(url, 0, ctx.Err())
	case err = <-done:
	}

	if err == nil {
		err = outcome.err
	}
	if err != nil {
		fe := classify(url, outcome.status, err)
		f.logger.WithFields(logrus.Fields{
			"url":    url,
			"kind":   fe.Kind,
			"status": fe.StatusCode,
		}).WithError(err).Warn("Fetch failed")
		return "", fe
	}
	if outcome.status != http.StatusOK {
		f.logger.WithFields(logrus.Fields{
			"url":    url,
			"status": outcome.status,
		}).Warn("Unexpected status")
		return "", classify(url, outcome.status, nil)
	}

	f.logger.WithFields(logrus.Fields{
		"url":   url,
		"bytes": len(outcome.body),
	}).Debug("Fetched page")
	return outcome.body, nil
}

// String names the backend in logs.
func (f *HTTPFetcher) String() string {
	return fmt.Sprintf("http(timeout=%s)", f.timeout)
}
