// Package service implements the core forwarding and header rewriting.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"coi-proxy-go/internal/client"
	"coi-proxy-go/internal/config"
	"coi-proxy-go/internal/isolation"
	"coi-proxy-go/internal/metrics"
	"coi-proxy-go/internal/model"
)

// hopByHopHeaders apply to a single connection and are never forwarded.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyService forwards requests to the origin and rewrites the isolation
// headers on the way back. It keeps no per-request state.
type ProxyService struct {
	client       *client.OriginClient
	logger       *slog.Logger
	metrics      *metrics.Metrics
	origin       *url.URL
	preserveHost bool
}

// NewProxyService creates a ProxyService for the configured origin.
// The metrics parameter is optional.
func NewProxyService(c *client.OriginClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q has no host", cfg.Upstream.BaseURL)
	}

	return &ProxyService{
		client:       c,
		logger:       logger.With("component", "proxy_service"),
		metrics:      m,
		origin:       u,
		preserveHost: cfg.Upstream.PreserveHost,
	}, nil
}

// Handle forwards req to the origin and returns the origin's response with
// Cross-Origin-Opener-Policy and Cross-Origin-Embedder-Policy forced. Status,
// status text, every other header and the body stream are the origin's.
// The caller must close the returned body.
//
// A failed fetch is returned as an error; there is no retry and no
// synthesized response. Origin error statuses are not errors.
func (s *ProxyService) Handle(req *model.InboundRequest) (*model.OutboundResponse, error) {
	outreq, err := s.newOriginRequest(req)
	if err != nil {
		return nil, fmt.Errorf("forward to origin: %w", err)
	}

	up, err := s.client.Do(outreq)
	if err != nil {
		return nil, fmt.Errorf("forward to origin: %w", err)
	}

	if overridden := isolation.Overrides(up.Header); len(overridden) > 0 {
		s.logger.Debug("overwriting origin isolation headers",
			"path", req.Path,
			"headers", overridden,
		)
		if s.metrics != nil {
			for _, h := range overridden {
				s.metrics.PolicyOverrides.WithLabelValues(h).Inc()
			}
		}
	}

	return Rewrite(up), nil
}

// Rewrite builds the outbound response from an origin response. It is the
// pure part of Handle: the upstream header map is copied, never mutated.
func Rewrite(up *model.UpstreamResponse) *model.OutboundResponse {
	return &model.OutboundResponse{
		StatusCode: up.StatusCode,
		StatusText: up.StatusText,
		Header:     isolation.Headers(up.Header),
		Trailer:    up.Trailer,
		Body:       up.Body,
	}
}

// newOriginRequest builds the request sent to the origin. Only the scheme and
// host are taken from the origin URL; path, query, method, body and
// end-to-end headers are the client's.
func (s *ProxyService) newOriginRequest(req *model.InboundRequest) (*http.Request, error) {
	target := s.targetURL(req.Path, req.RawQuery)

	body := req.Body
	if req.ContentLength == 0 {
		body = http.NoBody
	}

	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	outreq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build origin request: %w", err)
	}
	outreq.ContentLength = req.ContentLength
	outreq.Header = endToEndHeaders(req.Header)

	if s.preserveHost && req.Host != "" {
		outreq.Host = req.Host
	}

	return outreq, nil
}

// targetURL joins the origin base path with the request's escaped path and
// appends the raw query untouched.
func (s *ProxyService) targetURL(path, rawQuery string) string {
	if path == "" {
		path = "/"
	}
	base := strings.TrimSuffix(s.origin.EscapedPath(), "/")

	u := url.URL{
		Scheme: s.origin.Scheme,
		User:   s.origin.User,
		Host:   s.origin.Host,
	}
	return u.String() + base + path + queryPart(rawQuery)
}

func queryPart(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	return "?" + rawQuery
}

// endToEndHeaders copies src without hop-by-hop headers, including any
// named in Connection. A missing User-Agent is pinned to empty so the Go
// client does not invent one.
func endToEndHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}

	for _, v := range dst.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = textproto.TrimString(name); name != "" {
				dst.Del(name)
			}
		}
	}
	for _, h := range hopByHopHeaders {
		dst.Del(h)
	}

	if _, ok := dst["User-Agent"]; !ok {
		dst["User-Agent"] = []string{""}
	}
	return dst
}
