//	@title			Feedline API
//	@version		1.0
//	@description	Media feed backend: upload images and videos, list the feed, delete posts.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/feedline/service/internal/auth"
	"github.com/feedline/service/internal/config"
	"github.com/feedline/service/internal/db"
	"github.com/feedline/service/internal/logger"
	"github.com/feedline/service/internal/metrics"
	appMiddleware "github.com/feedline/service/internal/middleware"
	"github.com/feedline/service/internal/post"
	"github.com/feedline/service/internal/response"
	"github.com/feedline/service/internal/storage"
	"github.com/feedline/service/internal/user"

	_ "github.com/feedline/service/docs/swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	media, err := newMediaStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.MediaProvider).Msg("media store init failed")
	}

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc, log)

	authSvc := auth.NewService(userSvc, auth.Options{
		Secret:        cfg.JWTSecret,
		TokenLifetime: cfg.TokenLifetime,
		Production:    cfg.IsProduction(),
	}, log)
	authHandler := auth.NewHandler(authSvc, auth.NewValidator(), log)

	postRepo := post.NewRepository(pool)
	postSvc := post.NewService(postRepo, media, cfg.UploadDir, metrics.NewPrometheusRecorder(), log)
	postHandler := post.NewHandler(postSvc, cfg.MaxUploadSize, log)

	requireAuth := appMiddleware.RequireAuth(authSvc, userSvc, log)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(appMiddleware.Metrics)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Get("/feed", postHandler.Feed)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/jwt/login", authHandler.Login)
		r.With(requireAuth).Post("/jwt/logout", authHandler.Logout)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.Post("/request-verify-token", authHandler.RequestVerifyToken)
		r.Post("/verify", authHandler.Verify)
	})

	// Protected endpoints
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/upload", postHandler.Upload)
		r.Delete("/posts/{post_id}", postHandler.Delete)
		r.Get("/users/me", userHandler.GetMe)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Str("media", media.Provider()).Msg("server listening")
		log.Info().Msgf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func newMediaStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.MediaStore, error) {
	if cfg.MediaProvider == config.ProviderMinio {
		store, err := storage.NewMinioStorage(ctx, storage.MinioOptions{
			Endpoint:   cfg.StorageEndpoint,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Bucket:     cfg.StorageBucket,
			PublicBase: cfg.StoragePublicBase,
			UseSSL:     cfg.StorageUseSSL,
		}, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := storage.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryFolder)
	if err != nil {
		return nil, err
	}
	return store, nil
}
