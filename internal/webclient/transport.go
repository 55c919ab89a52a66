package webclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/raysh454/convotap/internal/logging"
)

// DefaultTimeout bounds one daemon round trip.
const DefaultTimeout = 10 * time.Second

// UserAgent identifies CLI and popup calls in the daemon's request log.
const UserAgent = "convotap-cli"

// ErrReplyTooLarge is returned when a daemon reply exceeds maxMessageBytes.
var ErrReplyTooLarge = errors.New("daemon reply too large")

// HTTPTransport carries daemon API calls over net/http. The daemon listens
// on a local address, so proxies from the environment are not used.
type HTTPTransport struct {
	client *http.Client
	logger logging.Logger
}

var _ WebClient = (*HTTPTransport)(nil)

// NewHTTPTransport wraps httpClient. A nil httpClient gets a direct
// transport with DefaultTimeout.
func NewHTTPTransport(logger logging.Logger, httpClient *http.Client) (*HTTPTransport, error) {
	if logger == nil {
		return nil, errors.New("webclient: nil logger")
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				Proxy:               nil,
				DialContext:         (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		}
	}
	return &HTTPTransport{client: httpClient, logger: logger}, nil
}

// Do sends req. Every call announces UserAgent; a reply larger than
// maxMessageBytes fails with ErrReplyTooLarge.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxMessageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if len(b) > maxMessageBytes {
		return nil, ErrReplyTooLarge
	}

	elapsed := time.Since(start)
	t.logger.Debug("daemon call",
		logging.Field{Key: "method", Value: req.Method},
		logging.Field{Key: "url", Value: req.URL},
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "elapsed_ms", Value: elapsed.Milliseconds()})

	return &Response{
		Headers:    resp.Header,
		Body:       b,
		StatusCode: resp.StatusCode,
		Elapsed:    elapsed,
	}, nil
}

// Close drops idle keep-alive connections to the daemon.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
