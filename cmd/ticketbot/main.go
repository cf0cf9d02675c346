package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	v1 "go_ticketbot/api/v1"
	"go_ticketbot/internal/auth"
	"go_ticketbot/internal/bot"
	"go_ticketbot/internal/cache"
	"go_ticketbot/internal/config"
	"go_ticketbot/internal/db"
	"go_ticketbot/internal/engine"
	"go_ticketbot/internal/notify"
	"go_ticketbot/internal/scheduler"
	"go_ticketbot/internal/scraper"
	"go_ticketbot/internal/store"
	"go_ticketbot/internal/ws"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("✓ Configuration loaded")

	// 2. Initialize MySQL
	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		log.Fatalf("Failed to initialize MySQL: %v", err)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := db.Migrate(db.GetDB()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("✓ Migrations applied")
	}

	// 3. Initialize Redis
	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer cache.Close()

	// 4. Initialize JWT
	auth.InitJWT(cfg.JWT.Secret)

	baseLogger := logrus.NewEntry(logrus.StandardLogger())

	// 5. Initialize WebSocket server and event publisher
	if err := ws.InitServer(); err != nil {
		log.Fatalf("Failed to initialize WebSocket server: %v", err)
	}
	publisher := ws.NewPublisher(db.GetDB())
	ws.SetPublisher(publisher)

	// 6. Wire the monitoring engine
	st := store.New(db.GetDB())
	sessions := auth.NewSessionStore(cache.Client)

	botCfg := bot.Config{
		BaseURL:            cfg.Bot.BaseURL,
		StoreCode:          cfg.Bot.StoreCode,
		RequestTimeout:     cfg.Bot.RequestTimeout,
		PositiveIndicators: cfg.Bot.CartPositiveIndicators,
		NegativeIndicators: cfg.Bot.CartNegativeIndicators,
	}
	factory := func() engine.Client {
		return bot.NewClient(botCfg, baseLogger)
	}

	notifier := notify.NewDiscord(cfg.Notify.DiscordWebhookURL, cfg.Notify.PublicBaseURL, baseLogger)

	supervisor := engine.NewSupervisor(st, factory, publisher, notifier, engine.Options{
		ScanInterval: cfg.Bot.ScanInterval,
		ErrorBackoff: cfg.Bot.ErrorBackoff,
		CartHold:     cfg.Bot.CartHold,
		CheckoutURL:  cfg.Bot.BaseURL + "/checkout/cart",
	}, baseLogger)

	// 7. Scheduled task trigger
	var sched *scheduler.Worker
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewWorker(st, supervisor,
			time.Duration(cfg.Scheduler.IntervalSec)*time.Second, baseLogger)
		sched.Start()
	}

	// 8. Games catalog
	catalog := scraper.NewCatalog(
		scraper.NewScraper(botCfg, "Ingolstadt", baseLogger),
		cache.Client, baseLogger)

	// 9. HTTP layer
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	wsHandler := ws.WrapWithAuth(ws.Server)
	r.GET("/socket.io/*any", gin.WrapH(wsHandler))
	r.POST("/socket.io/*any", gin.WrapH(wsHandler))

	v1.SetupRouter(r, v1.Deps{
		Cfg:        cfg,
		Store:      st,
		Supervisor: supervisor,
		Sessions:   sessions,
		Catalog:    catalog,
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		log.Printf("✓ Server starting on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 10. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	if sched != nil {
		sched.Stop()
	}
	supervisor.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}
