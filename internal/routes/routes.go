package route

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shortener/config"
	"shortener/internal/handler"
	"shortener/internal/middleware"
	"shortener/internal/password"
	"shortener/internal/repository"
	"shortener/internal/service"
	"shortener/internal/shortcode"
	"shortener/internal/token"
)

// SetupRouter wires repositories, services and handlers onto a gin
// engine. Everything is constructed here and injected; no package
// holds ambient state besides the global zap logger.
func SetupRouter(cfg *config.Config, pgClient *pgxpool.Pool, redisClient *redis.Client) *gin.Engine {
	userRepo := repository.NewPostgresUserRepository(pgClient)
	urlRepo := repository.NewPostgresURLRepository(pgClient, redisClient)

	hasher := password.NewHasher(cfg.BcryptCost)
	tokens := token.NewManager(cfg.JWTSecret, cfg.JWTTokenTTL)
	generator := shortcode.NewCryptoRandGenerator()

	authService := service.NewAuthService(userRepo, hasher, tokens)
	urlService := service.NewURLService(urlRepo, generator)

	authHandler := handler.NewAuthHandler(authService)
	urlHandler := handler.NewURLHandler(urlService)

	requireAuth := middleware.RequireAuth(authService)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", requireAuth, authHandler.Me)
			auth.POST("/logout", requireAuth, authHandler.Logout)
		}

		urls := api.Group("/urls", requireAuth)
		{
			urls.POST("", urlHandler.Create)
			urls.GET("", urlHandler.List)
			urls.GET("/:code", urlHandler.Get)
			urls.GET("/:code/stats", urlHandler.Stats)
			urls.PATCH("/:code", urlHandler.Update)
			urls.DELETE("/:code", urlHandler.Delete)
		}
	}

	// Public redirect, rate limited per client IP.
	r.GET("/:code", limiter.Middleware(), urlHandler.Redirect)

	return r
}
