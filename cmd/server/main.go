package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/musicatlas/api/internal/auth"
	"github.com/musicatlas/api/internal/client"
	"github.com/musicatlas/api/internal/config"
	"github.com/musicatlas/api/internal/handler"
	"github.com/musicatlas/api/internal/middleware"
	"github.com/musicatlas/api/internal/repository"
	"github.com/musicatlas/api/internal/service"
	"github.com/musicatlas/api/internal/session"
	"github.com/musicatlas/api/internal/worker"
	ws "github.com/musicatlas/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize the MusicBrainz mirror pool
	pool, err := repository.Open(ctx, repository.Config{
		DSN:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MusicBrainz mirror: %v", err)
	}
	defer pool.Close()

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients and repositories
	spotifyClient := client.NewSpotifyClient(&cfg.Spotify)
	if !spotifyClient.IsConfigured() {
		log.Println("Info: Spotify credentials not configured, enrichment disabled")
	}
	artistRepo := repository.NewArtistRepository(pool)
	recsRepo := repository.NewRecsRepository(pool)
	clusterRepo := repository.NewClusterRepository(pool)
	sessionStore := session.NewStore(redisClient, session.DefaultTTL)

	// Initialize OIDC JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.OIDC.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Initialize services
	registry := service.NewJobRegistry(time.Duration(cfg.Recs.JobTTLMinutes) * time.Minute)
	resolver := service.NewResolverService(artistRepo)
	enrichment := service.NewEnrichmentService(spotifyClient)
	dispatcher := service.NewAsynqDispatcher(asynqClient)
	recsService := service.NewRecsService(
		registry, resolver, recsRepo, enrichment, dispatcher, sessionStore,
		cfg.Recs.EnrichMaxItems,
	)
	tasteService := service.NewTasteService(
		clusterRepo, sessionStore, spotifyClient, recsService, enrichment,
		cfg.Recs.TasteEnrichMaxItems, cfg.Recs.DefaultRecs,
	)

	// Initialize handlers
	recsHandler := handler.NewRecsHandler(recsService, sessionStore, spotifyClient, validate)
	tasteHandler := handler.NewTasteHandler(tasteService)

	// Initialize auth handler for ForwardAuth verification
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	// Initialize middleware (with fallback support)
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		// Direct mode: auth is handled by the backend itself
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		dbOK := repository.HealthCheck(c.Context(), pool, 2*time.Second) == nil
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"database": dbOK,
				"redis":    redisClient.Ping(c.Context()).Err() == nil,
				"spotify":  spotifyClient.IsConfigured(),
				"auth":     jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Recommendation routes
	recs := api.Group("/recs")
	recs.Post("/jobs", rateLimiter.RecsJobLimit(cfg.RateLimit.RecsPerHour), recsHandler.CreateJob)
	recs.Get("/jobs/:jobId", recsHandler.Status)
	recs.Get("/jobs/:jobId/result", recsHandler.Result)
	recs.Get("/albums", rateLimiter.AlbumsLimit(cfg.RateLimit.AlbumsPerMin), recsHandler.Albums)
	recs.Post("/albums/from-spotify", rateLimiter.AlbumsLimit(cfg.RateLimit.AlbumsPerMin), recsHandler.FromSpotify)
	recs.Post("/albums/add-artist", rateLimiter.AlbumsLimit(cfg.RateLimit.AlbumsPerMin), recsHandler.AddArtist)

	// Taste profile routes
	taste := api.Group("/taste", rateLimiter.TasteLimit(cfg.RateLimit.TastePerMin))
	taste.Get("/profile", tasteHandler.Profile)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, registry, resolver, recsService, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	registry *service.JobRegistry,
	resolver *service.ResolverService,
	recsService *service.RecsService,
	hub *ws.Hub,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Job records live in this process; the worker must too.
			Concurrency: 4,
			Queues: map[string]int{
				"recs": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	recsWorker := worker.NewRecsWorker(registry, resolver, recsService, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeRecs, recsWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
