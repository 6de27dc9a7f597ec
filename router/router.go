package router

import (
	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/pterodactyl/scribe/access"
	"github.com/pterodactyl/scribe/config"
	"github.com/pterodactyl/scribe/filesystem"
	"github.com/pterodactyl/scribe/router/middleware"
)

// Configure configures the routing infrastructure for this daemon instance.
func Configure(fs *filesystem.Filesystem, guard *access.Guard) *gin.Engine {
	gin.SetMode("release")

	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(config.Get().Api.TrustedProxies); err != nil {
		log.WithField("error", err).Warn("failed to configure trusted proxies, X-Forwarded-For will be ignored")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(middleware.AttachRequestID(), middleware.CaptureErrors(), middleware.SetAccessControlHeaders())
	router.Use(middleware.AttachFilesystem(fs))
	// Requests are only dumped in debug mode, every write is already logged by the
	// handlers themselves.
	router.Use(gin.LoggerWithFormatter(func(params gin.LogFormatterParams) string {
		log.WithFields(log.Fields{
			"client_ip":  params.ClientIP,
			"status":     params.StatusCode,
			"latency":    params.Latency,
			"request_id": params.Keys["request_id"],
		}).Debugf("%s %s", params.MethodColor()+params.Method+params.ResetColor(), params.Path)

		return ""
	}))

	router.GET("/", getIndex)

	// All of the routes beyond this mount will use an authorization middleware
	// and will not be accessible without the correct token header provided.
	protected := router.Group("/")
	protected.Use(middleware.RequireAuthorization(guard))
	protected.GET("/api/system", getSystemInformation)

	agent := protected.Group("/agent")
	agent.Use(middleware.LimitRequestBody())
	{
		agent.POST("/edit", postAgentEdit)
		agent.POST("/create", postAgentCreate)
	}

	return router
}
