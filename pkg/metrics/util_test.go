package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestPrometheusHandler_ServesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", prometheusHandler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "go_goroutines")
}

func TestComputeApproximateRequestSize(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/apple", strings.NewReader("0123456789"))
	req.Host = "example.com"
	req.Header.Set("Content-Type", "application/json")

	size := computeApproximateRequestSize(req)

	// path + method + proto + host + header + body, allowing for
	// normalization the http package applies.
	want := len("/webhooks/apple") + len(http.MethodPost) + len(req.Proto) + len(req.Host) + 10
	require.GreaterOrEqual(t, size, want)
}

func TestComputeApproximateRequestSize_UnknownContentLength(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.ContentLength = -1

	size := computeApproximateRequestSize(req)
	require.Equal(t, len("/healthz")+len(http.MethodGet)+len(req.Proto)+len(req.Host), size)
}

func TestMillisecondsSince(t *testing.T) {
	start := time.Now().Add(-250 * time.Millisecond)
	elapsed := MillisecondsSince(start)
	require.GreaterOrEqual(t, elapsed, 250.0)
	require.Less(t, elapsed, 10_000.0)
}
