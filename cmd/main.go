package main

import (
	"anonchat/backend/internal/api/handler"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/feed"
	"anonchat/backend/internal/filter"
	"anonchat/backend/internal/lifecycle"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/match"
	"anonchat/backend/internal/relay"
	"anonchat/backend/internal/reports"
	"anonchat/backend/internal/rooms"
	"anonchat/backend/internal/storage"
	"anonchat/backend/internal/telegram"
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	// TranslateError surfaces unique violations as gorm.ErrDuplicatedKey,
	// which the seal-match race detection relies on.
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	return db, rdb
}

func main() {
	log.Println("Starting AnonChat Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, rdb := setupDependencies(cfg)
	store := storage.NewService(db, rdb)
	if err := store.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database and Redis connections established, migrations complete.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The restart invalidates presence: whoever was online must poke the
	// bot again before the queue sweep proposes them.
	bootCtx, cancelBoot := context.WithTimeout(ctx, config.StoreTimeout)
	if n, err := store.MarkAllUsersOffline(bootCtx); err != nil {
		log.Printf("WARN: Could not reset presence: %v", err)
	} else {
		log.Printf("INFO: Presence reset for %d users", n)
	}
	if n, err := store.CleanupStaleBindings(bootCtx); err != nil {
		log.Printf("WARN: Could not clean stale bindings: %v", err)
	} else if n > 0 {
		log.Printf("INFO: Removed %d stale bindings", n)
	}
	cancelBoot()

	localizer, err := localization.NewLocalizer(cfg.LocalesDir)
	if err != nil {
		log.Fatalf("Failed to create localizer: %v", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to start Telegram bot: %v", err)
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	sender := telegram.NewSender(bot, localizer, store, cfg.AdminID, cfg.AdminGroupID)

	pool := match.NewPool()
	roomMgr := rooms.NewManager(store, sender, pool)
	matchmaker := match.New(store, roomMgr, pool)

	filt := filter.New(store)
	strikes := filter.NewStrikes()
	rel := relay.New(roomMgr, store, filt, strikes, sender)
	reportSvc := reports.NewService(store, roomMgr, sender)

	sweeps := lifecycle.NewRunner(store, roomMgr, sender)
	sweeps.Start(ctx)

	hub := feed.NewHub(store)
	go hub.Run(ctx)

	botService := telegram.NewBotService(bot, cfg, store, localizer, sender,
		matchmaker, roomMgr, rel, reportSvc, filt, strikes)
	go botService.Run(ctx)

	r := gin.Default()
	h := handler.NewHandler(store, hub, cfg)
	h.Register(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARN: HTTP server shutdown: %v", err)
		}
	}()

	log.Printf("INFO: Ops API listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
	log.Println("INFO: Shutdown complete.")
}
