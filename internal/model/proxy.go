// Package model defines the per-request types that flow through the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// InboundRequest is a client request to be forwarded to the origin as-is.
type InboundRequest struct {
	Ctx           context.Context
	Method        string
	Path          string // escaped form, forwarded byte for byte
	RawQuery      string
	Host          string
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
}

// UpstreamResponse is the origin's reply. Body is a live stream owned by the
// caller, who must close it. Trailer values are filled in once Body has been
// read to EOF.
type UpstreamResponse struct {
	StatusCode int
	StatusText string
	Header     http.Header
	Trailer    http.Header
	Body       io.ReadCloser
}

// OutboundResponse is the reply sent back to the client. It shares the
// upstream body stream and trailers; only Header differs from the upstream
// response.
type OutboundResponse struct {
	StatusCode int
	StatusText string
	Header     http.Header
	Trailer    http.Header
	Body       io.ReadCloser
}
