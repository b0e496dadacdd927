package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuslink/account-service/internal/container"
	handlers "github.com/campuslink/account-service/internal/interface/http"
	"github.com/campuslink/account-service/internal/interface/middleware"
	"github.com/campuslink/account-service/pkg/helpers"
)

// AccountModule wires account HTTP handlers and auth middleware into routes.
// Public: POST /api/users
// Protected: GET/PUT /api/profile, POST /api/profile/avatar,
// DELETE /api/users/:id, GET /api/users/search
type AccountModule struct {
	Handler *handlers.AccountHandler
	JWT     *helpers.JWTManager
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	// Registration is public but tightly rate limited; internal tooling
	// on private networks bypasses the limiter.
	registerLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())
	rg.POST("/users", registerLimiter, m.Handler.Create)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
		auth.DELETE("/users/:id", m.Handler.Delete)
		auth.GET("/users/search", m.Handler.Search)
	}
}
