// Package client provides the HTTP client used to reach the origin.
package client

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coi-proxy-go/internal/config"
	"coi-proxy-go/internal/metrics"
	"coi-proxy-go/internal/model"
)

// OriginClient sends requests to the origin and hands back its responses
// without interpreting them.
type OriginClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewOriginClient creates an OriginClient with connection pooling.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
//
// The upstream timeout bounds the wait for response headers only. Once the
// origin has answered, the body streams for as long as it takes.
//
// Redirects are returned to the caller rather than followed, and the
// transport never decompresses bodies, so whatever the origin sends reaches
// the client byte for byte.
func NewOriginClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *OriginClient {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost:   cfg.Upstream.IdleConnections,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &OriginClient{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "origin_client"),
		metrics: m,
	}
}

// Do executes req against the origin. The caller is responsible for closing
// the response body. Cancelling req's context aborts the fetch.
func (c *OriginClient) Do(req *http.Request) (*model.UpstreamResponse, error) {
	c.logger.Debug("origin request",
		"method", req.Method,
		"url", req.URL.Redacted(),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
			c.metrics.UpstreamFailures.WithLabelValues(method).Inc()
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Header:     resp.Header,
		Trailer:    resp.Trailer,
		Body:       resp.Body,
	}, nil
}

// statusText extracts the reason phrase from a status line such as
// "404 Not Found". HTTP/2 has no reason phrase, so the standard text is used.
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if text, ok := strings.CutPrefix(resp.Status, code+" "); ok {
		return text
	}
	if resp.Status == code {
		return ""
	}
	return http.StatusText(resp.StatusCode)
}
