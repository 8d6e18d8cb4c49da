package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/time/rate"
)

type Options struct {
	Client       *http.Client
	UserAgent    string
	Timeout      time.Duration // whole request including the body, 0 means none
	HostInterval time.Duration // minimum gap between requests to one host, 0 disables
}

// HTTP opens feeds over HTTP(S), decoding gzip and deflate bodies itself so
// that an abort also tears down the decompressor.
type HTTP struct {
	client       *http.Client
	userAgent    string
	timeout      time.Duration
	hostInterval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ Transport = (*HTTP)(nil)

func NewHTTP(opts Options) *HTTP {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	return &HTTP{
		client:       client,
		userAgent:    opts.UserAgent,
		timeout:      opts.Timeout,
		hostInterval: opts.HostInterval,
		limiters:     make(map[string]*rate.Limiter),
	}
}

func (t *HTTP) Open(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}

	if err := t.wait(ctx, u.Host); err != nil {
		return nil, fmt.Errorf("failed to wait for host %s: %w", u.Host, err)
	}

	var cancel context.CancelFunc
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	body := &responseBody{reader: resp.Body, raw: resp.Body, cancel: cancel}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		decoded, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
		if err != nil {
			body.Close()
			return nil, fmt.Errorf("failed to decode response body: %w", err)
		}
		if decoded != nil {
			body.reader = decoded
			body.decoder = decoded
			resp.Header.Del("Content-Encoding")
			resp.Header.Del("Content-Length")
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (t *HTTP) wait(ctx context.Context, host string) error {
	if t.hostInterval <= 0 {
		return nil
	}

	t.mu.Lock()
	limiter, ok := t.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(t.hostInterval), 1)
		t.limiters[host] = limiter
	}
	t.mu.Unlock()

	return limiter.Wait(ctx)
}

// decodeBody returns nil when the body is not compressed.
func decodeBody(encoding string, r io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return nil, nil
	case "gzip", "x-gzip":
		return gzip.NewReader(r)
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw.
		br := bufio.NewReader(r)
		head, err := br.Peek(2)
		if err == nil && isZlibHeader(head) {
			return zlib.NewReader(br)
		}
		return flate.NewReader(br), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding: %s", encoding)
	}
}

func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

type responseBody struct {
	reader  io.Reader
	decoder io.Closer
	raw     io.Closer
	cancel  context.CancelFunc
	once    sync.Once
	err     error
}

func (b *responseBody) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

func (b *responseBody) Close() error {
	b.once.Do(func() {
		b.cancel()
		if b.decoder != nil {
			b.decoder.Close()
		}
		b.err = b.raw.Close()
	})
	return b.err
}
