package api

import (
	"net/http"
	"time"

	"github.com/benmeehan/attendance-agent/internal/checkin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger, "/healthz", "/metrics"))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	v1.GET("/checkin", h.getCheckin)
	v1.POST("/checkin/session", h.newSession)
	v1.POST("/checkin/verify", h.dispatch(func(m *checkin.Machine, c *gin.Context) error {
		return m.StartVerification(c.Request.Context())
	}))
	v1.POST("/checkin/retry", h.dispatch(func(m *checkin.Machine, c *gin.Context) error {
		return m.Retry(c.Request.Context())
	}))
	v1.POST("/checkin/reverify", h.dispatch(func(m *checkin.Machine, c *gin.Context) error {
		return m.Reverify(c.Request.Context())
	}))
	v1.POST("/checkin/commit", h.commit)

	v1.GET("/attendance", h.listAttendance)
	v1.GET("/attendance/summary", h.attendanceSummary)
	v1.GET("/attendance/insights", h.attendanceInsights)

	v1.GET("/odpasses", h.listPasses)
	v1.POST("/odpasses", h.submitPass)
	v1.POST("/odpasses/:id/approve", h.approvePass)
	v1.POST("/odpasses/:id/reject", h.rejectPass)
	v1.POST("/documents/analyze", h.analyzeDocument)

	v1.GET("/profile", h.getProfile)
	v1.PUT("/profile", h.updateProfile)

	return r
}

// requestLogger logs one line per request, skipping the given paths.
func requestLogger(logger zerolog.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request served")
	}
}
