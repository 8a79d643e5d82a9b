package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/foliobase/foliobase/internal/auth"
	"github.com/foliobase/foliobase/internal/middleware"
)

// Deps are the services the router wires together.
type Deps struct {
	Tokens    *auth.TokenIssuer
	Auth      *AuthHandler
	Query     *QueryHandler
	Storage   *StorageHandler
	Functions *FunctionHandler
	Health    *HealthHandler
	// CORSOrigin is the dashboard origin allowed on the authenticated API.
	CORSOrigin string
}

// NewRouter builds the HTTP surface.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", deps.Health.Health)

	// Unauthenticated reads for allow-listed public buckets get long-lived
	// cache headers and open CORS.
	public := router.Group("/public")
	public.Use(middleware.PublicCacheHeaders())
	public.GET("/:bucket/*path", deps.Storage.PublicDownload)

	v1 := router.Group("/v1")
	v1.Use(middleware.CORSMiddleware(deps.CORSOrigin))

	// Credential endpoints are rate limited per IP. Password change takes
	// the limiter too since it verifies the old password.
	authRoutes := v1.Group("/auth")
	authRoutes.Use(middleware.AuthRateLimitMiddleware())
	authRoutes.POST("/signup", deps.Auth.SignUp)
	authRoutes.POST("/signin", deps.Auth.SignIn)
	authRoutes.PUT("/password", middleware.BearerAuth(deps.Tokens), deps.Auth.ChangePassword)

	authProtected := v1.Group("/auth")
	authProtected.Use(middleware.BearerAuth(deps.Tokens))
	authProtected.GET("/session", deps.Auth.Session)
	authProtected.GET("/users", deps.Auth.ListUsers)
	authProtected.PUT("/users/:id/role", deps.Auth.SetRole)
	authProtected.POST("/users/:id/deactivate", deps.Auth.Deactivate)

	protected := v1.Group("")
	protected.Use(middleware.BearerAuth(deps.Tokens))
	protected.POST("/query", deps.Query.Execute)

	protected.POST("/storage/:bucket", deps.Storage.Upload)
	protected.GET("/storage/:bucket", deps.Storage.List)
	protected.DELETE("/storage/:bucket", deps.Storage.Remove)
	protected.GET("/storage/:bucket/public-url", deps.Storage.PublicURL)
	protected.POST("/storage/:bucket/sign", deps.Storage.SignedURL)
	protected.GET("/storage/:bucket/object/*path", deps.Storage.Download)

	protected.GET("/functions", deps.Functions.List)
	protected.POST("/functions/:name", deps.Functions.Invoke)

	return router
}
