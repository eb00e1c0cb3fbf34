package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies fetch failures.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindHTTPStatus ErrorKind = "http_status"
	KindNetwork    ErrorKind = "network"
)

// FetchError is returned when a page could not be retrieved.
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// BlockedError means the source answered with a bot challenge instead of
// results. It is distinct from a genuinely empty results page.
type BlockedError struct {
	URL    string
	Marker string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by bot challenge at %s (marker %q)", e.URL, e.Marker)
}

// IsRetryable reports whether err is worth another attempt. Blocked pages
// and cancellations are not.
func IsRetryable(err error) bool {
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fe *FetchError
	return errors.As(err, &fe)
}

func classify(url string, status int, err error) *FetchError {
	if err == nil {
		return &FetchError{URL: url, Kind: KindHTTPStatus, StatusCode: status}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{URL: url, Kind: KindTimeout, StatusCode: status, Err: err}
	}
	if status != 0 {
		return &FetchError{URL: url, Kind: KindHTTPStatus, StatusCode: status, Err: err}
	}
	return &FetchError{URL: url, Kind: KindNetwork, Err: err}
}
