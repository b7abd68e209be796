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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mstanic/courtside/internal/config"
	"github.com/mstanic/courtside/internal/database"
	"github.com/mstanic/courtside/internal/gateway"
	"github.com/mstanic/courtside/internal/logger"
	postgresrepo "github.com/mstanic/courtside/internal/repository/postgres"
	"github.com/mstanic/courtside/internal/scheduler"
	"github.com/mstanic/courtside/internal/service"
	"github.com/mstanic/courtside/internal/timezone"
	"github.com/mstanic/courtside/internal/transport/http/handlers"
	"github.com/mstanic/courtside/internal/transport/http/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	// Database
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		zlog.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		zlog.Fatal("running migrations", zap.Error(err))
	}
	zlog.Info("connected to database")

	clock, err := timezone.NewLeagueClock(cfg.LeagueTimezone)
	if err != nil {
		zlog.Fatal("loading league timezone", zap.Error(err))
	}

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	patternRepo := postgresrepo.NewPatternRepo(pool)
	blockRepo := postgresrepo.NewBlockRepo(pool)
	matchRepo := postgresrepo.NewMatchRepo(pool)
	notificationRepo := postgresrepo.NewNotificationRepo(pool)

	// Outbound gateways
	smsSender := gateway.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	emailSender := gateway.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName)

	// Services
	authService := service.NewAuthService(userRepo, clock, cfg.JWTSecret)
	userService := service.NewUserService(userRepo, clock, zlog)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, smsSender, emailSender, clock, zlog)
	availabilityService := service.NewAvailabilityService(patternRepo, blockRepo, clock, zlog)
	matchService := service.NewMatchService(matchRepo, userRepo, notificationService, clock, zlog)
	overlapService := service.NewOverlapService(blockRepo, matchRepo, userRepo, clock, zlog)

	// Background sweeps
	sched := scheduler.New(matchService, notificationService, availabilityService, userService, clock, zlog)
	if err := sched.Start(); err != nil {
		zlog.Fatal("starting scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	availHandler := handlers.NewAvailabilityHandler(availabilityService)
	matchHandler := handlers.NewMatchHandler(matchService)
	overlapHandler := handlers.NewOverlapHandler(overlapService)
	notifHandler := handlers.NewNotificationHandler(notificationService)

	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	// Protected - Profile
	mux.Handle("GET /api/v1/me", auth(http.HandlerFunc(userHandler.Me)))
	mux.Handle("PUT /api/v1/me/vacation", auth(http.HandlerFunc(userHandler.SetVacation)))
	mux.Handle("PUT /api/v1/me/status", auth(http.HandlerFunc(userHandler.SetStatus)))

	// Protected - Availability
	mux.Handle("POST /api/v1/availability/patterns", auth(http.HandlerFunc(availHandler.CreatePattern)))
	mux.Handle("GET /api/v1/availability/patterns", auth(http.HandlerFunc(availHandler.ListPatterns)))
	mux.Handle("PUT /api/v1/availability/patterns/{id}", auth(http.HandlerFunc(availHandler.UpdatePattern)))
	mux.Handle("DELETE /api/v1/availability/patterns/{id}", auth(http.HandlerFunc(availHandler.DeletePattern)))
	mux.Handle("POST /api/v1/availability/blocks", auth(http.HandlerFunc(availHandler.AddBlock)))
	mux.Handle("GET /api/v1/availability/blocks", auth(http.HandlerFunc(availHandler.ListBlocks)))
	mux.Handle("DELETE /api/v1/availability/blocks/{id}", auth(http.HandlerFunc(availHandler.DeleteBlock)))

	// Protected - Overlap
	mux.Handle("GET /api/v1/overlap/players/{id}", auth(http.HandlerFunc(overlapHandler.SharedSlots)))
	mux.Handle("GET /api/v1/overlap/candidates", auth(http.HandlerFunc(overlapHandler.Candidates)))

	// Protected - Matches
	mux.Handle("POST /api/v1/matches", auth(http.HandlerFunc(matchHandler.Create)))
	mux.Handle("GET /api/v1/matches", auth(http.HandlerFunc(matchHandler.List)))
	mux.Handle("GET /api/v1/matches/{id}", auth(http.HandlerFunc(matchHandler.Get)))
	mux.Handle("POST /api/v1/matches/{id}/accept", auth(http.HandlerFunc(matchHandler.Accept)))
	mux.Handle("POST /api/v1/matches/{id}/decline", auth(http.HandlerFunc(matchHandler.Decline)))
	mux.Handle("POST /api/v1/matches/{id}/cancel", auth(http.HandlerFunc(matchHandler.Cancel)))

	// Protected - Notification preferences
	mux.Handle("GET /api/v1/notifications/preferences", auth(http.HandlerFunc(notifHandler.GetPreferences)))
	mux.Handle("PUT /api/v1/notifications/preferences", auth(http.HandlerFunc(notifHandler.UpdatePreferences)))

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.CORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown", zap.Error(err))
	}
	zlog.Info("server stopped")
}
