package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"

	"github.com/labstack/echo/v4"
)

// userinfoPattern matches credentials embedded in URLs inside error messages.
var userinfoPattern = regexp.MustCompile(`(://)[^/@\s"]+@`)

// ErrorHandler returns the server-wide echo.HTTPErrorHandler. Errors that
// escape a handler end up here: echo's own HTTP errors keep their status,
// origin forwarding failures become a generic 502 or 504 JSON body.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := classify(err)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			logger.Debug("request rejected",
				"status", code,
				"err", sanitizeError(err),
				"path", c.Request().URL.Path,
			)
		} else {
			logger.Error("proxy error",
				"status", code,
				"err", sanitizeError(err),
				"path", c.Request().URL.Path,
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, map[string]string{"error": msg})
		}
		if werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}

// classify maps err to a status code and a client-facing message.
func classify(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "origin request timed out"
	}

	if errors.Is(err, context.Canceled) {
		return http.StatusBadGateway, "client disconnected"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return http.StatusBadGateway, "origin host unreachable"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout, "origin request timed out"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return http.StatusBadGateway, "origin connection failed"
	}

	return http.StatusBadGateway, "origin request failed"
}

// sanitizeError redacts URL credentials from error messages.
func sanitizeError(err error) string {
	return userinfoPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]@")
}
