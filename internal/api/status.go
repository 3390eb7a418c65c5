package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type providerState struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) getProviders(c *gin.Context) {
	out := map[string]providerState{}
	if s.Providers != nil {
		for _, p := range s.Providers.Providers() {
			out[p.Name] = providerState{Enabled: p.Enabled}
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics not available"})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}
