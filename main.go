package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"block-engage-system/chain"
	"block-engage-system/handlers"
	"block-engage-system/middleware"
	"block-engage-system/models"
	"block-engage-system/services"
	"block-engage-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "block-engage-system",
	})

	// 🔐 GLOBAL: only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Activity{},
		&models.Task{},
		&models.Challenge{},
		&models.League{},
		&models.LeagueMembership{},
		&models.WeeklyScore{},
		&models.LotteryRound{},
		&models.LotteryTicket{},
		&models.MirrorJob{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	mirror := chain.NewClientFromEnv()
	notifier := services.NewLogNotifier()

	ledgerService := services.NewLedgerService(db, mirror, notifier)
	lotteryService := services.NewLotteryService(db, ledgerService, mirror, notifier)
	taskService := services.NewTaskService(db, ledgerService, lotteryService, mirror, notifier)
	challengeService := services.NewChallengeService(db, ledgerService, mirror, notifier)
	leagueService := services.NewLeagueService(db, ledgerService, mirror, notifier)

	if _, err := lotteryService.EnsureActiveRound(); err != nil {
		log.Fatal("failed to open lottery round:", err)
	}

	// --- CONFIGURE identity sync details ---
	identityServiceURL := os.Getenv("IDENTITY_SERVICE_URL")
	if identityServiceURL == "" {
		log.Fatal("IDENTITY_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("ENGAGE_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("ENGAGE_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := workers.NewAccountSyncWorker(db, identityServiceURL, "/api/v1/public/profiles", serviceToken)
	syncWorker.Start(ctx)

	retryWorker := workers.NewMirrorRetryWorker(db, mirror)
	retryWorker.Start(ctx)

	scheduler := services.NewSettlementScheduler(taskService, challengeService, leagueService, lotteryService)
	sched, err := scheduler.Start()
	if err != nil {
		log.Fatal("failed to start settlement scheduler:", err)
	}
	defer func() { _ = sched.Shutdown() }()

	handlers.SetupTokenRoutes(app, ledgerService)
	handlers.SetupTaskRoutes(app, taskService)
	handlers.SetupChallengeRoutes(app, challengeService)
	handlers.SetupLeagueRoutes(app, leagueService)
	handlers.SetupLotteryRoutes(app, lotteryService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Account Sync Worker running")
	log.Println("✅ Settlement scheduler running")
	if mirror.Disabled() {
		log.Println("⚠️  Chain mirror disabled — ledger runs local-only")
	} else {
		log.Println("✅ Chain mirror enabled")
	}
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
