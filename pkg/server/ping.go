package server

import (
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handlePing(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	mb := float64(ms.Alloc) / 1024 / 1024

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"memory_MB": math.Round(mb*100) / 100,
	})
}
