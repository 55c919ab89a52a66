// Package webclient talks to a running convotap daemon: plain HTTP calls for
// the request/response API and a websocket subscription for live updates.
package webclient

import (
	"context"
	"net/http"
	"time"
)

// WebClient executes HTTP requests against the daemon.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Headers    http.Header
	Body       []byte
	StatusCode int
	Elapsed    time.Duration
}
