package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/kurisync/internal/metrics"
)

// Metrics counts requests by route template, so path parameters do not
// create new series.
type Metrics struct {
	metrics *metrics.Metrics
}

func NewMetrics(m *metrics.Metrics) *Metrics {
	return &Metrics{metrics: m}
}

func (m *Metrics) Handle(c *gin.Context) {
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	m.metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
}
