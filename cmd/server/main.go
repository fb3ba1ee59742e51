package main // Entry point package

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/social-post-scheduler/internal/auth"
	"github.com/iliyamo/social-post-scheduler/internal/config"
	"github.com/iliyamo/social-post-scheduler/internal/database"
	"github.com/iliyamo/social-post-scheduler/internal/handler"
	"github.com/iliyamo/social-post-scheduler/internal/integration/tiktok"
	"github.com/iliyamo/social-post-scheduler/internal/middleware"
	"github.com/iliyamo/social-post-scheduler/internal/queue"
	"github.com/iliyamo/social-post-scheduler/internal/repository"
	"github.com/iliyamo/social-post-scheduler/internal/router"
	"github.com/iliyamo/social-post-scheduler/internal/scheduler"
	"github.com/iliyamo/social-post-scheduler/internal/storage"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments inject env vars
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	migCtx, migCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migCtx, db); err != nil {
		migCancel()
		log.Fatalf("migrate: %v", err)
	}
	migCancel()

	// Token settings are validated up front; an empty JWT secret or a
	// non-positive TTL never makes it past startup.
	authCfg, err := auth.NewConfig(
		cfg.JWTSecret,
		time.Duration(cfg.AccessTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTTLDays)*24*time.Hour,
		cfg.BcryptCost,
	)
	if err != nil {
		log.Fatalf("auth config: %v", err)
	}
	codec := auth.NewTokenCodec(authCfg)

	users := repository.NewUserRepo(db)
	posts := repository.NewPostRepo(db)

	store, err := storage.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	tiktokClient := tiktok.New(cfg.TikTokClientKey, cfg.TikTokClientSecret, cfg.TikTokRedirectURI)
	if !tiktokClient.Enabled() {
		log.Printf("tiktok integration disabled (no client credentials)")
	}

	// Redis backs the token-bucket limiter on credential endpoints. A
	// missing Redis simply disables limiting; it never blocks startup.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	router.RegisterRoutes(e, router.Deps{
		Auth:        handler.NewAuthHandler(authCfg, codec, users),
		Posts:       handler.NewPostHandler(posts),
		TikTok:      handler.NewTikTokHandler(users, tiktokClient),
		TikTokPosts: handler.NewTikTokPostHandler(users, posts, store, tiktokClient),
		Admin:       handler.NewAdminHandler(users),
		Codec:       codec,
		Users:       users,
		AuthLimiter: limiter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background consumer for post.published events; reconnects on its own.
	go func() {
		if err := queue.StartPostConsumer(); err != nil {
			log.Printf("post consumer stopped: %v", err)
		}
	}()

	// Minute-interval publish loop for due posts.
	go scheduler.New(users, posts, store, tiktokClient).Run(ctx)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	if err := e.Start(addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
