package server

import (
	"net/http"

	"courier/internal/auth"
	"courier/internal/config"
	"courier/internal/directory"
	"courier/internal/metrics"
	"courier/internal/mw"
	"courier/internal/service"
	"courier/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 统一初始化中间件、用户与消息接口以及 WebSocket 端点。
// rl 为 nil 时不限速。
func SetupRouter(cfg config.Config, dir *directory.Directory, hub *ws.Hub, rl *mw.RL) *gin.Engine {
	r := gin.New()
	// 路径必须精确匹配，未匹配的请求统一返回 400。
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(gin.Recovery())
	r.Use(mw.RequestID(), mw.AccessLog())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	if rl != nil {
		r.Use(rl.Middleware())
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chSvc := service.NewChannelService(dir)
	h := NewHandler(service.NewUserService(dir), service.NewMessageService(dir, chSvc), chSvc)
	authed := auth.NewGuard(dir).Middleware()

	r.PUT("/users", h.Register)
	r.GET("/register", h.Register)
	r.GET("/users", h.ListUsers)

	r.DELETE("/users", authed, h.DeleteSelf)
	r.GET("/delete", authed, h.DeleteSelf)

	r.GET("/messages", authed, h.GetMessages)
	r.PUT("/messages", authed, h.SendMessage)
	r.GET("/send", authed, h.SendMessage)

	r.GET("/ws", authed, h.RequireUpgrade, ws.Serve(hub, chSvc, cfg.WsSendBuffer))

	r.NoRoute(func(c *gin.Context) { c.AbortWithStatus(http.StatusBadRequest) })
	return r
}
