package transport

import (
	"context"
	"io"
	"net/http"
)

// Response is an open feed response. Closing Body aborts the request if it
// is still in flight; Close may be called any number of times.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

type Transport interface {
	Open(ctx context.Context, url string, header http.Header) (*Response, error)
}
