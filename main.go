package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/config"
	"main/handler"
	"main/middleware"
	"main/repository"
	"main/services"
	"main/usecase"
	"main/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil && os.Getenv("GO_ENV") != "test" {
		log.Fatalf("Error loading .env file: %v", err)
	}

	// Check required environment variables
	requiredEnvVars := []string{
		"MONGO_URI",
		"MONGO_DB",
		"JWT_SECRET_KEY",
		"JWT_EXPIRATION_TIME",
		"GOOGLE_CLIENT_ID",
		"GOOGLE_CLIENT_SECRET",
		"GOOGLE_REDIRECT_URI",
		"PORT",
	}

	for _, envVar := range requiredEnvVars {
		if os.Getenv(envVar) == "" && os.Getenv("GO_ENV") != "test" {
			log.Fatalf("Required environment variable %s is not set", envVar)
		}
	}

	utils.InitValidator()
	utils.InitJWT()
}

func newPendingLoginStore(cfg config.SessionConfig) services.PendingLoginStore {
	// A shared store lets a takeover complete on any process; the in-memory
	// store is fine for a single instance.
	if redisURL := utils.GetEnvAsString("REDIS_URL", ""); redisURL != "" {
		store, err := services.NewRedisPendingLoginStore(redisURL, cfg.PendingLoginTTL)
		if err != nil {
			log.Fatalf("Failed to initialize Redis pending login store: %v", err)
		}
		log.Println("Using Redis-backed pending login store")
		return store
	}
	return services.NewMemoryPendingLoginStore(cfg.PendingLoginTTL)
}

func setupRouter(sessionService *services.SessionService, authHandler *handler.AuthHandler, sessionHandler *handler.SessionHandler) *gin.Engine {
	router := gin.New()

	router.Use(middleware.EnhancedRecoveryMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestSizeLimiter(1 << 20)) // 1 MB
	router.Use(middleware.RequestTracingMiddleware())
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := router.Group("/api/auth")
	{
		public.GET("/google/url", authHandler.GoogleAuthURLHandler)
		public.POST("/callback", authHandler.AuthCallbackHandler)
		public.POST("/check-active-session", authHandler.CheckActiveSessionHandler)
		public.POST("/revoke-session", authHandler.RevokeSessionHandler)
		public.POST("/complete-force-login", authHandler.CompleteForceLoginHandler)
	}

	// The heartbeat runs behind the lighter guard so an idle-but-alive client
	// can still check in; everything else gets the full idle evaluation.
	heartbeat := router.Group("/api/auth")
	heartbeat.Use(middleware.HeartbeatGuard(sessionService))
	{
		heartbeat.POST("/session/heartbeat", sessionHandler.HeartbeatHandler)
	}

	protected := router.Group("/api/auth")
	protected.Use(middleware.SessionGuard(sessionService))
	{
		protected.GET("/me", authHandler.MeHandler)
		protected.POST("/logout", authHandler.LogoutHandler)
		protected.GET("/session/stats", sessionHandler.SessionStatsHandler)
		protected.POST("/session/cleanup", sessionHandler.SessionCleanupHandler)
	}

	return router
}

func main() {
	dbCfg := config.LoadDatabaseConfig()
	sessionCfg := config.LoadSessionConfig()
	googleCfg := config.LoadGoogleConfig()

	utils.InitMongoClient(utils.MongoOptions{
		URI:             dbCfg.URI,
		MaxPoolSize:     dbCfg.MaxPoolSize,
		MinPoolSize:     dbCfg.MinPoolSize,
		MaxConnIdleTime: dbCfg.MaxConnIdleTime,
		RetryWrites:     dbCfg.RetryWrites,
	})

	sessionRepo := repository.GetSessionRepo(utils.MongoClient)
	userRepo := repository.GetUserRepo(utils.MongoClient)

	if err := repository.SetupIndexes(utils.MongoClient.Database(dbCfg.DatabaseName), dbCfg.SessionsCollection, dbCfg.UsersCollection); err != nil {
		log.Printf("Failed to set up indexes: %v", err)
	}

	sessionService := services.NewSessionService(sessionRepo, newPendingLoginStore(sessionCfg), sessionCfg)
	userService := usecase.NewUserService(userRepo)
	provider := services.NewGoogleProvider(googleCfg)

	authHandler := handler.NewAuthHandler(provider, userService, sessionService)
	sessionHandler := handler.NewSessionHandler(sessionService)

	sweeper := services.NewIdleSweeper(sessionService)
	sweeper.Start()
	defer sweeper.Stop()

	router := setupRouter(sessionService, authHandler, sessionHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := utils.MongoClient.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting from MongoDB: %v", err)
	}

	log.Println("Server exited")
}
