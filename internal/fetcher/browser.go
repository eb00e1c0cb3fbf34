package fetcher

import (
	"context"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// BrowserFetcher renders pages in headless Chrome. It is slower than
// HTTPFetcher but sees script-rendered listings.
type BrowserFetcher struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	settle      time.Duration
	logger      *logrus.Logger
}

// NewBrowserFetcher starts an allocator; Chrome itself launches on first use.
// CHROME_BIN overrides the browser binary.
func NewBrowserFetcher(timeout time.Duration, userAgent string, logger *logrus.Logger) *BrowserFetcher {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "he-IL"),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin := os.Getenv("CHROME_BIN"); chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserFetcher{
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		timeout:     timeout,
		settle:      2 * time.Second,
		logger:      logger,
	}
}

// Fetch navigates to url and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	// Stop the tab when the caller gives up.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var doc documentStatus
	chromedp.ListenTarget(tabCtx, doc.observe)

	var content string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.settle),
		chromedp.OuterHTML("html", &content, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else if tabCtx.Err() == context.DeadlineExceeded {
			err = context.DeadlineExceeded
		}
		fe := classify(url, 0, err)
		b.logger.WithFields(logrus.Fields{
			"url":  url,
			"kind": fe.Kind,
		}).WithError(err).Warn("Browser fetch failed")
		return "", fe
	}

	if err := statusError(url, doc.status()); err != nil {
		b.logger.WithFields(logrus.Fields{
			"url":    url,
			"status": err.StatusCode,
		}).Warn("Browser fetch returned non-200 status")
		return "", err
	}

	b.logger.WithFields(logrus.Fields{
		"url":   url,
		"bytes": len(content),
	}).Debug("Rendered page")
	return content, nil
}

// documentStatus keeps the HTTP status of the first document response a
// tab receives, which is the navigated page itself.
type documentStatus struct {
	code atomic.Int64
}

func (d *documentStatus) observe(ev interface{}) {
	e, ok := ev.(*network.EventResponseReceived)
	if !ok || e.Type != network.ResourceTypeDocument || e.Response == nil {
		return
	}
	d.code.CompareAndSwap(0, e.Response.Status)
}

func (d *documentStatus) status() int {
	return int(d.code.Load())
}

// statusError maps a rendered page's status to a FetchError. Zero means no
// response was observed and is not treated as a failure.
func statusError(url string, status int) *FetchError {
	if status == 0 || status == http.StatusOK {
		return nil
	}
	return classify(url, status, nil)
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	b.cancelAlloc()
}
