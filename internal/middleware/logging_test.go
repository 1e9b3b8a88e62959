package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequestLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequestLogger_LogsResolvedErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		_ = c.String(http.StatusBadGateway, err.Error())
	}
	e.Use(RequestLogger(logger))
	e.GET("/fail", func(c echo.Context) error {
		return errors.New("origin down")
	})

	req := httptest.NewRequest(http.MethodGet, "/fail", http.NoBody)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	out := buf.String()
	if !strings.Contains(out, "status=502") {
		t.Errorf("log = %q, want status=502", out)
	}
	if !strings.Contains(out, "request_id=req-42") {
		t.Errorf("log = %q, want request_id=req-42", out)
	}
	if strings.Count(rec.Body.String(), "origin down") != 1 {
		t.Errorf("body = %q, want the error written exactly once", rec.Body.String())
	}
}
