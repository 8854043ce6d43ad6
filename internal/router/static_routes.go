package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterStaticRoutes 注册静态资源与监控指标路由
func (rt *Router) RegisterStaticRoutes(r *gin.Engine) {
	// 语音附件不走 gin.Static：访问前要做 24 小时过期拦截
	r.GET("/static/voice_notes/*key", rt.handlers.VoiceNote.Serve)

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
