package modules

import (
	"expvar"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuslink/account-service/internal/container"
	"github.com/campuslink/account-service/internal/interface/middleware"
)

// OpsModule exposes operational endpoints: liveness and expvar metrics.
type OpsModule struct{}

func NewOpsModule() *OpsModule { return &OpsModule{} }

func (m *OpsModule) Register(rg *gin.RouterGroup) {
	rg.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public metrics endpoint (expvar), rate-limited per IP
	rl := middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIP(), nil)
	rg.GET("/debug/vars", rl, gin.WrapH(expvar.Handler()))
}
