package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 60 * time.Second

// NewClient returns an HTTP client with standard timeout configuration.
// Archive downloads can run to hundreds of megabytes, hence the generous
// default.
func NewClient() *http.Client {
	return NewClientWithTimeout(DefaultTimeout)
}

func NewClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}
