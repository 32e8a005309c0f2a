package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/edgetrack/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newMiddlewareRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger(zerolog.New(buf).Level(zerolog.DebugLevel)))
	router.Use(RequestMetricsMiddleware("mw-test"))
	router.PUT("/targets/:token/properties/:name", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequestLoggerTagsTargetRoutes(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	router := newMiddlewareRouter(&buf)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/targets/app/properties/env", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	line := buf.String()
	for _, want := range []string{
		`"token":"app"`,
		`"property":"env"`,
		`"route":"/targets/:token/properties/:name"`,
		`"message":"admin request"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %s: %s", want, line)
		}
	}
}

func TestRequestMetricsUseRoutePattern(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	router := newMiddlewareRouter(&buf)

	for _, token := range []string{"a", "b"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/targets/"+token+"/properties/env", nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere/secret-token", nil))

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("mw-test", http.MethodPut, "/targets/:token/properties/:name", "200")); got != 2 {
		t.Fatalf("expected 2 requests on route pattern, got %v", got)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("mw-test", http.MethodGet, UnmatchedRoute, "404")); got != 1 {
		t.Fatalf("expected unmatched request counted once, got %v", got)
	}
	if !strings.Contains(buf.String(), `"route":"unmatched"`) {
		t.Fatalf("unmatched route not logged: %s", buf.String())
	}
}
