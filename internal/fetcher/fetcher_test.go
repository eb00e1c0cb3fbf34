package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestHTTPFetcher_Success(t *testing.T) {
	var gotLang, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.Header.Get("Accept-Language")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<html><body>שלום</body></html>")
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPConfig{Timeout: 2 * time.Second, UserAgent: DefaultUserAgent}, quietLogger())
	body, err := f.Fetch(context.Background(), srv.URL+"/realestate/rent")

	require.NoError(t, err)
	assert.Contains(t, body, "שלום")
	assert.Equal(t, "he-IL,he;q=0.9,en-US;q=0.8,en;q=0.7", gotLang)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestHTTPFetcher_RotatesUserAgentWhenUnset(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPConfig{Timeout: 2 * time.Second}, quietLogger())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.NotEmpty(t, gotUA)
}

func TestHTTPFetcher_Failures(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer notFound.Close()

	accepted := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "later")
	}))
	defer accepted.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer slow.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name   string
		url    string
		kind   ErrorKind
		status int
	}{
		{"not found", notFound.URL, KindHTTPStatus, http.StatusNotFound},
		{"non-200 success", accepted.URL, KindHTTPStatus, http.StatusAccepted},
		{"timeout", slow.URL, KindTimeout, 0},
		{"refused", closedURL, KindNetwork, 0},
	}

	f := NewHTTPFetcher(HTTPConfig{Timeout: 100 * time.Millisecond, UserAgent: DefaultUserAgent}, quietLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := f.Fetch(context.Background(), tt.url)
			assert.Empty(t, body)

			var fe *FetchError
			require.True(t, errors.As(err, &fe), "expected FetchError, got %v", err)
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.True(t, IsRetryable(err))
		})
	}
}

func TestHTTPFetcher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewHTTPFetcher(HTTPConfig{}, quietLogger())
	_, err := f.Fetch(ctx, "http://127.0.0.1:1/")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))
}

func TestDetector(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name    string
		content string
		marker  string
		blocked bool
	}{
		{"hebrew challenge", "<title>אבטחת אתר</title>", "אבטחת אתר", true},
		{"english challenge", "<h1>Are you for real?</h1>", "Are you for real", true},
		{"hcaptcha widget", `<div class="h-captcha" data-sitekey="x"></div>`, "h-captcha", true},
		{"shieldsquare", "<script src=ShieldSquare.js>", "ShieldSquare", true},
		{"results page", "<ul><li>דירה</li></ul>", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker, blocked := d.Detect(tt.content)
			assert.Equal(t, tt.blocked, blocked)
			assert.Equal(t, tt.marker, marker)
			assert.Equal(t, tt.blocked, d.IsBlocked(tt.content))
		})
	}
}

func TestDetector_Check(t *testing.T) {
	d := NewDetector("captcha-wall")

	assert.NoError(t, d.Check("u", "<html>fine</html>"))

	err := d.Check("u", "<div>captcha-wall</div>")
	var blocked *BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "captcha-wall", blocked.Marker)
	assert.False(t, IsRetryable(err))
}

func TestDelay_Bounds(t *testing.T) {
	d := NewDelay(0.002, 0.001)
	assert.Equal(t, time.Millisecond, d.Min)
	assert.Equal(t, 2*time.Millisecond, d.Max)

	for i := 0; i < 100; i++ {
		n := d.Next()
		assert.GreaterOrEqual(t, n, d.Min)
		assert.LessOrEqual(t, n, d.Max)
	}
	assert.Equal(t, time.Duration(0), Delay{}.Next())
}

func TestDelay_Wait(t *testing.T) {
	start := time.Now()
	require.NoError(t, NewDelay(0.01, 0.02).Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewDelay(5, 10).Wait(ctx), context.Canceled)
	assert.NoError(t, Delay{}.Wait(context.Background()))
}

func TestDocumentStatus(t *testing.T) {
	var doc documentStatus
	assert.Equal(t, 0, doc.status())

	doc.observe(&network.EventRequestWillBeSent{})
	doc.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500},
	})
	assert.Equal(t, 0, doc.status())

	doc.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404},
	})
	doc.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200},
	})
	assert.Equal(t, 404, doc.status())
}

func TestStatusError(t *testing.T) {
	assert.Nil(t, statusError("https://example.com", 0))
	assert.Nil(t, statusError("https://example.com", http.StatusOK))

	for _, code := range []int{http.StatusAccepted, http.StatusNotFound, http.StatusServiceUnavailable} {
		fe := statusError("https://example.com", code)
		require.NotNil(t, fe)
		assert.Equal(t, KindHTTPStatus, fe.Kind)
		assert.Equal(t, code, fe.StatusCode)
		assert.True(t, IsRetryable(fe))
	}
}
