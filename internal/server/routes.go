package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openmined/remoteassets/internal/server/handlers/content"
	"github.com/openmined/remoteassets/internal/server/handlers/management"
	"github.com/openmined/remoteassets/internal/server/middlewares"
	"github.com/openmined/remoteassets/internal/version"
)

func SetupRoutes(config *Config, svc *Services) http.Handler {
	r := gin.New()

	contentH := content.New(svc.Repository, svc.Remote)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	if config.HTTP.TLSEnabled() {
		r.Use(middlewares.HSTS())
	}
	r.Use(middlewares.GZIP())
	r.Use(cors.Default())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)
	if svc.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{})))
	}

	contentG := r.Group(content.Root)
	contentG.Use(middlewares.Identity(config.HTTP.Users))
	contentG.Use(middlewares.Collector(svc.Remote))
	{
		contentG.GET("/*path", contentH.Get)
	}

	if svc.Job != nil {
		mgmtH := management.New(svc.Job)

		mgmt := r.Group("/remoteassets")
		mgmt.Use(middlewares.Identity(config.HTTP.Users))
		mgmt.Use(middlewares.RequireUser())
		{
			mgmt.GET("/status", mgmtH.Status)

			syncG := mgmt.Group("/sync")
			syncG.Use(middlewares.RateLimiter(config.HTTP.SyncRate))
			syncG.POST("/all", mgmtH.SyncAll)
			syncG.POST("/tags", mgmtH.SyncTags)
			syncG.POST("/assets", mgmtH.SyncAssets)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
