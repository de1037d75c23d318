package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheck returns a health check handler that probes the given
// dependencies. A nil or empty checks map reports healthy unconditionally.
func HealthCheck(serviceName, version string, checks map[string]func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		statusCode := http.StatusOK
		var results map[string]string

		if len(checks) > 0 {
			results = make(map[string]string, len(checks))
			for name, probe := range checks {
				if err := probe(); err != nil {
					results[name] = "unhealthy: " + err.Error()
					status = "unhealthy"
					statusCode = http.StatusServiceUnavailable
				} else {
					results[name] = "healthy"
				}
			}
		}

		c.JSON(statusCode, HealthResponse{
			Status:  status,
			Service: serviceName,
			Version: version,
			Checks:  results,
		})
	}
}
