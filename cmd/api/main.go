package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "backoffice/api/swagger" // swagger docs
	"backoffice/internal/clock"
	"backoffice/internal/config"
	"backoffice/internal/database"
	"backoffice/internal/gateway"
	"backoffice/internal/handler"
	"backoffice/internal/middleware"
	"backoffice/internal/refcache"
	"backoffice/internal/repository"
	"backoffice/internal/service"
	"backoffice/internal/session"
	"backoffice/internal/undo"
	"backoffice/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Back-office Logistics API
// @version         1.0
// @description     Requests, reposiciones and users of the logistics back office, with session tables and undoable transitions.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Info().Msg("No configs/.env file found or error loading it")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogger(cfg)
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	log.Info().Str("driver", cfg.DB.Driver).Msg("journal database ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORSAllowedOrigins...)
	go wsHub.Run()
	defer wsHub.Stop()

	var store refcache.Store = refcache.NewMemoryStore(clk)
	if cfg.Reference.Store == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Reference.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Reference.RedisAddr).Msg("redis unreachable")
		}
		defer rdb.Close()
		store = refcache.NewRedisStore(rdb)
	}
	cache := refcache.New(store, cfg.Reference.TTL)

	// Set up dependencies (Repository -> Service -> Handler)
	api := gateway.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	journalService := service.NewJournalService(repository.NewJournalRepository(db), repository.NewTransactionManager(db))
	manager := undo.NewManager(
		undo.WithClock(clk),
		undo.WithWindow(cfg.Undo.Window),
		undo.WithTick(cfg.Undo.Tick),
		undo.WithCommitTimeout(cfg.Undo.CommitTimeout),
		undo.WithNotifier(wsHub),
		undo.WithRecorder(journalService),
		undo.WithErrorMessage(gateway.UserMessage),
	)
	defer manager.Close()

	referenceService := service.NewReferenceService(api, cache)
	sessions := session.NewStore(clk, cfg.SessionIdleTTL,
		func(userID string) *session.Session { return session.New(userID, cfg.DefaultPageSize) },
		func(s *session.Session) {
			if n := manager.DiscardUser(s.UserID); n > 0 {
				log.Info().Str("user_id", s.UserID).Int("actions", n).Msg("discarded pending actions of idle session")
			}
			s.Lock()
			if s.Search != nil {
				s.Search.Cancel()
			}
			s.Unlock()
			if err := referenceService.Invalidate(context.Background(), s.UserID); err != nil {
				log.Warn().Err(err).Str("user_id", s.UserID).Msg("failed to drop reference cache of idle session")
			}
		},
	)
	go sessions.Run(ctx, time.Minute)

	roleService := service.NewRoleService(api)
	tableService := service.NewTableService(api, sessions, wsHub, clk, cfg.SearchDebounce, cfg.TableTTL)
	requestService := service.NewRequestService(api, sessions, journalService, wsHub)
	reposicionService := service.NewReposicionService(api, sessions, manager, journalService, wsHub)
	formService := service.NewFormService(api, sessions, referenceService, journalService, wsHub)
	actionService := service.NewActionService(manager)
	userService := service.NewUserService(api, sessions, roleService)

	// Set up Gin Router
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery(), middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	if cfg.SwaggerEnabled {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "sessions": sessions.Len()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	secret := []byte(cfg.JWTSecret)
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	// API Routing
	authed := router.Group("", middleware.RequireAuth(secret), func(c *gin.Context) {
		sessions.Touch(middleware.UserID(c))
		c.Next()
	})
	handler.NewTableHandler(tableService).RegisterRoutes(authed)
	handler.NewFormHandler(formService).RegisterRoutes(authed)
	handler.NewRequestHandler(requestService).RegisterRoutes(authed)
	handler.NewReposicionHandler(reposicionService).RegisterRoutes(authed)
	handler.NewActionHandler(actionService).RegisterRoutes(authed)
	handler.NewReferenceHandler(referenceService).RegisterRoutes(authed)
	handler.NewUserHandler(userService).RegisterRoutes(authed)
	handler.NewRoleHandler(roleService).RegisterRoutes(authed)
	handler.NewJournalHandler(journalService).RegisterRoutes(authed)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server stopped gracefully")
}

func setupLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
