package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger 数据库连通性检查，*pgxpool.Pool 满足
type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness 就绪检查依赖，未配置的项跳过
type Readiness struct {
	DB              Pinger
	MQConnected     func() bool
	SuggestionState func() string
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(ready Readiness) *Router {
	r := gin.New()
	r.Use(gin.Recovery())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if ready.DB != nil {
			if err := ready.DB.Ping(ctx); err != nil {
				c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}
		if ready.MQConnected != nil && !ready.MQConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		resp := gin.H{"status": "ready"}
		// 建议服务是可选协作方，熔断只报告不影响就绪
		if ready.SuggestionState != nil {
			resp["suggestion"] = ready.SuggestionState()
		}
		c.JSON(200, resp)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
