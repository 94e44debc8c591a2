package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fotofair/fotofair-api/internal/config"
	"github.com/fotofair/fotofair-api/internal/domain/finaudit"
	"github.com/fotofair/fotofair-api/internal/domain/ledger"
	"github.com/fotofair/fotofair-api/internal/domain/notification"
	"github.com/fotofair/fotofair-api/internal/domain/payout"
	"github.com/fotofair/fotofair-api/internal/domain/transaction"
	"github.com/fotofair/fotofair-api/internal/domain/wallet"
	"github.com/fotofair/fotofair-api/internal/pkg/database"
	"github.com/fotofair/fotofair-api/internal/pkg/logger"
	"github.com/fotofair/fotofair-api/internal/pkg/storage"
)

// One-shot reconciliation audit for cron. Prints the report as JSON to
// stdout, archives it when a bucket is configured, and exits non-zero when
// the audit does not pass.
func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	svc := finaudit.NewService(
		transaction.NewRepository(db),
		payout.NewRepository(db),
		wallet.NewRepository(db),
		ledger.NewRepository(db),
		notification.NewRepository(db),
		cfg.LedgerShadowWrites,
	)

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, err := svc.Run(ctx, finaudit.Params{
		LookbackDays:     cfg.AuditLookbackDays,
		TransactionLimit: cfg.AuditTransactionLimit,
		PayoutLimit:      cfg.AuditPayoutLimit,
		LedgerLimit:      cfg.AuditLedgerLimit,
		SampleLimit:      cfg.AuditSampleLimit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Audit run failed")
	}

	if archive != nil {
		key, err := archive.Archive(ctx, report)
		if err != nil {
			log.Error().Err(err).Msg("Failed to archive audit report")
		} else {
			log.Info().Str("key", key).Msg("Audit report archived")
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode report")
	}

	if !report.Pass {
		os.Exit(1)
	}
}
