package server

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/logger"
)

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

func recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		log.Error("panic recovered", "path", c.Request.URL.Path, "panic", rec)
		writeError(c, errors.New("internal error"))
	})
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	f := promauto.With(reg)
	return &httpMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackforge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "path", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stackforge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *httpMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		m.requests.WithLabelValues(c.Request.Method, path, status).Inc()
		m.duration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// errorBody is the JSON error envelope of every failed request
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func writeError(c *gin.Context, err error) {
	kind := string(apperr.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	detail := errorDetail{Kind: kind, Message: apperr.UserMessage(err)}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		detail.Hint = ae.Hint
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), errorBody{Error: detail})
}

func badRequest(c *gin.Context, format string, args ...any) {
	writeError(c, apperr.Newf(apperr.KindInvalidInput, format, args...))
}
