package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/fotofair/fotofair-api/internal/config"
	"github.com/fotofair/fotofair-api/internal/domain/dropin"
	"github.com/fotofair/fotofair-api/internal/domain/finaudit"
	"github.com/fotofair/fotofair-api/internal/domain/ledger"
	"github.com/fotofair/fotofair-api/internal/domain/notification"
	"github.com/fotofair/fotofair-api/internal/domain/payout"
	"github.com/fotofair/fotofair-api/internal/domain/transaction"
	"github.com/fotofair/fotofair-api/internal/domain/wallet"
	"github.com/fotofair/fotofair-api/internal/middleware"
	"github.com/fotofair/fotofair-api/internal/pkg/database"
	"github.com/fotofair/fotofair-api/internal/pkg/fees"
	"github.com/fotofair/fotofair-api/internal/pkg/jwt"
	"github.com/fotofair/fotofair-api/internal/pkg/logger"
	"github.com/fotofair/fotofair-api/internal/pkg/pricing"
	pkgresponse "github.com/fotofair/fotofair-api/internal/pkg/response"
	"github.com/fotofair/fotofair-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Bool("ledger_shadow_writes", cfg.LedgerShadowWrites).
		Msg("Starting FotoFair finance API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Ledger ----------
	ledgerRepo := ledger.NewRepository(db)
	recorder := ledger.NewRecorder(ledgerRepo, cfg.LedgerShadowWrites)

	// ---------- Repositories ----------
	dropinRepo := dropin.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	transactionRepo := transaction.NewRepository(db)
	payoutRepo := payout.NewRepository(db)
	notificationRepo := notification.NewRepository(db)

	// ---------- Services ----------
	feeCalc := fees.NewCalculator(cfg.PlatformFeePercent)
	creditPricing := pricing.NewDropIn(cfg.DropInCreditUnitCents, cfg.DropInCreditCurrency)

	walletSvc := wallet.NewService(walletRepo)
	dropinSvc := dropin.NewService(dropinRepo, recorder, creditPricing, redis)
	transactionSvc := transaction.NewService(transactionRepo, feeCalc, recorder, walletSvc)
	payoutSvc := payout.NewService(payoutRepo, walletSvc, walletSvc, recorder)
	auditSvc := finaudit.NewService(transactionRepo, payoutRepo, walletRepo, ledgerRepo, notificationRepo, cfg.LedgerShadowWrites)

	archive, err := storage.NewAuditArchive(storage.Config{
		Bucket:    cfg.ArchiveBucket,
		Region:    cfg.ArchiveRegion,
		Endpoint:  cfg.ArchiveEndpoint,
		AccessKey: cfg.ArchiveAccessKeyID,
		SecretKey: cfg.ArchiveAccessKeySecret,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create audit archive")
	}

	// ---------- Handlers ----------
	dropinHandler := dropin.NewHandler(dropinSvc)
	walletHandler := wallet.NewHandler(walletSvc)
	transactionHandler := transaction.NewHandler(transactionSvc)
	payoutHandler := payout.NewHandler(payoutSvc)

	var archiver finaudit.Archiver
	if archive != nil {
		archiver = archive
	}
	auditHandler := finaudit.NewHandler(auditSvc, archiver)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/dropin", dropinHandler.Routes(authMiddleware))
		r.Mount("/wallets", walletHandler.Routes(authMiddleware))
		r.Mount("/transactions", transactionHandler.Routes(authMiddleware))
		r.Mount("/payouts", payoutHandler.Routes(authMiddleware))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Mount("/finance", auditHandler.Routes(authMiddleware))
		r.Mount("/dropin", dropinHandler.AdminRoutes(authMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
