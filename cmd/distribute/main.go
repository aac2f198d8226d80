// Command distribute runs one profit distribution outside the scheduler,
// for every qualifying user or for a single user.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yieldtree/internal/config"
	"yieldtree/internal/logging"
	"yieldtree/internal/monitoring"
	"yieldtree/internal/repositories"
	"yieldtree/internal/services/distribution"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/referral"
	"yieldtree/internal/services/sponsor"

	"go.uber.org/zap"
)

func main() {
	periodFlag := flag.String("period", "daily", "distribution period: daily or monthly")
	userID := flag.Uint("user", 0, "distribute for this user id only")
	timeout := flag.Duration("timeout", 30*time.Minute, "abort the run after this long")
	flag.Parse()

	config.LoadEnv()
	cfg := config.Load()

	if err := logging.InitLogger(cfg.Server.Production); err != nil {
		panic(err)
	}
	defer logging.Sync()
	log := logging.Logger

	period, err := distribution.ParsePeriod(*periodFlag)
	if err != nil {
		log.Fatal("invalid period", zap.Error(err))
	}
	loc, err := time.LoadLocation(cfg.Distribution.Timezone)
	if err != nil {
		log.Fatal("invalid distribution timezone", zap.String("timezone", cfg.Distribution.Timezone), zap.Error(err))
	}

	db, err := repositories.InitDB(cfg.Database, log)
	if err != nil {
		log.Fatal("database initialisation failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	cacheService := repositories.InitCache(cfg.Redis)
	defer cacheService.Close()

	store := repositories.NewStore(db)
	metrics := monitoring.NewCollector()
	ledgerSvc := ledger.NewService(store, cacheService, ledger.Config{}, log.Named("ledger"), metrics)
	cascader := referral.NewCascader(sponsor.NewResolver(log.Named("sponsor")), log.Named("referral"))
	engine := distribution.NewEngine(ledgerSvc, store, cascader, distribution.Config{
		DailyRate:   cfg.Distribution.DailyRate,
		MonthlyRate: cfg.Distribution.MonthlyRate,
		Workers:     cfg.Distribution.Workers,
		Location:    loc,
	}, log.Named("distribution"), metrics)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	var result interface{}
	if *userID != 0 {
		result, err = engine.Distribute(ctx, period, *userID)
	} else {
		result, err = engine.ProcessDistribution(ctx, period)
	}
	if err != nil {
		log.Fatal("distribution failed", zap.String("period", string(period)), zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Error("failed to print result", zap.Error(err))
	}
}
