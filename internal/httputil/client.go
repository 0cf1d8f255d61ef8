package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds every upstream request; a hung ThingSpeak call
// must never stall a refresh tick past one interval's worth of waiting.
const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP client with the given timeout, or the
// default timeout if zero.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}
