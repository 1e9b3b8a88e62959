package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"coi-proxy-go/internal/model"
	"coi-proxy-go/internal/service"
)

// ProxyHandler relays every non-reserved request to the origin.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle forwards the request and streams the rewritten origin response back.
// Forwarding failures are returned unchanged for the server's error handler.
//
// The origin's reason phrase is only logged: net/http always writes the
// standard text for the status code, so OutboundResponse.StatusText never
// reaches the wire. Origin trailers are announced before the status line and
// sent after the body.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	in := &model.InboundRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		Path:          req.URL.EscapedPath(),
		RawQuery:      req.URL.RawQuery,
		Host:          req.Host,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}

	resp, err := h.service.Handle(in)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	dst := c.Response().Header()
	for key, vals := range resp.Header {
		for _, v := range vals {
			dst.Add(key, v)
		}
	}
	// net/http adds these when absent; a nil entry suppresses them.
	for _, key := range []string{echo.HeaderContentType, "Date"} {
		if _, ok := resp.Header[key]; !ok {
			dst[key] = nil
		}
	}

	announced := len(resp.Trailer)
	for key := range resp.Trailer {
		dst.Add("Trailer", key)
	}

	c.Response().WriteHeader(resp.StatusCode)
	if announced > 0 {
		// Flushing now forces chunked encoding so the trailers have somewhere to go.
		c.Response().Flush()
	}

	// Once the status is sent a failed copy can only truncate the body.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", sanitizeError(err),
			"path", req.URL.Path,
			"status", resp.StatusCode,
			"status_text", resp.StatusText,
		)
		return nil
	}

	copyTrailers(dst, resp.Trailer, announced)
	return nil
}

// copyTrailers writes the origin trailers once the body is done. Keys that
// were not announced up front go out with the http.TrailerPrefix marker.
func copyTrailers(dst, trailer http.Header, announced int) {
	prefix := ""
	if len(trailer) != announced {
		prefix = http.TrailerPrefix
	}
	for key, vals := range trailer {
		for _, v := range vals {
			dst.Add(prefix+key, v)
		}
	}
}
