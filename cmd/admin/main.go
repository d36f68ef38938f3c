package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  block <user_id>")
	fmt.Println("  unblock <user_id>")
	fmt.Println("  setpremium <user_id> [days]")
	fmt.Println("  resetpremium <user_id>")
	fmt.Println("  stats")
	fmt.Println("  cleanup")
	os.Exit(1)
}

func parseUserID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fmt.Println("Invalid user id. Please provide an integer.")
		os.Exit(1)
	}
	return id
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	// Redis keeps the blocked-user cache coherent with block/unblock.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})

	store := storage.NewService(db, rdb)
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "block":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin block <user_id>")
			os.Exit(1)
		}
		userID := parseUserID(os.Args[2])
		if err := store.SetUserBlocked(ctx, userID, true); err != nil {
			log.Fatalf("Error blocking user: %v", err)
		}
		fmt.Printf("User %d has been blocked.\n", userID)

	case "unblock":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin unblock <user_id>")
			os.Exit(1)
		}
		userID := parseUserID(os.Args[2])
		if err := store.SetUserBlocked(ctx, userID, false); err != nil {
			log.Fatalf("Error unblocking user: %v", err)
		}
		fmt.Printf("User %d has been unblocked.\n", userID)

	case "setpremium":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin setpremium <user_id> [days]")
			os.Exit(1)
		}
		userID := parseUserID(os.Args[2])
		days := config.DefaultPremiumDays
		if len(os.Args) > 3 {
			var err error
			days, err = strconv.Atoi(os.Args[3])
			if err != nil || days <= 0 {
				fmt.Println("Invalid days. Please provide a positive integer.")
				os.Exit(1)
			}
		}
		expiry, err := store.GrantPremium(ctx, userID, days)
		if err != nil {
			log.Fatalf("Error granting premium: %v", err)
		}
		fmt.Printf("User %d is premium until %s.\n", userID, expiry.Format("2006-01-02"))

	case "resetpremium":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin resetpremium <user_id>")
			os.Exit(1)
		}
		userID := parseUserID(os.Args[2])
		if err := store.ClearPremium(ctx, userID); err != nil {
			log.Fatalf("Error clearing premium: %v", err)
		}
		fmt.Printf("User %d downgraded to normal user.\n", userID)

	case "stats":
		stats, err := store.GetStats(ctx)
		if err != nil {
			log.Fatalf("Error gathering stats: %v", err)
		}
		fmt.Printf("Users: %d (premium %d, blocked %d, online %d)\n",
			stats.Users, stats.PremiumUsers, stats.BlockedUsers, stats.OnlineUsers)
		fmt.Printf("Rooms: %d (active %d)\n", stats.Rooms, stats.ActiveRooms)
		fmt.Printf("Queue size: %d\n", stats.QueueSize)
		fmt.Printf("Reports: %d (%d unreviewed)\n", stats.Reports, stats.UnreviewedReports)
		fmt.Printf("Blocked words: %d\n", stats.BlockedWords)

	case "cleanup":
		stale, err := store.CleanupStaleBindings(ctx)
		if err != nil {
			log.Fatalf("Error cleaning stale bindings: %v", err)
		}
		cutoff := time.Now().Add(-config.RoomRetention)
		purged, err := store.DeleteRoomsClosedBefore(ctx, cutoff)
		if err != nil {
			log.Fatalf("Error purging expired rooms: %v", err)
		}
		fmt.Printf("Removed %d stale bindings, purged %d expired rooms.\n", stale, purged)

	default:
		fmt.Println("Unknown command")
		usage()
	}
}
