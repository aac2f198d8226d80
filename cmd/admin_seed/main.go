// Command admin_seed creates the root admin account, the top of the sponsor
// tree. Running it again is a no-op.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"yieldtree/internal/config"
	"yieldtree/internal/logging"
	"yieldtree/internal/repositories"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/user"

	"go.uber.org/zap"
)

func main() {
	reset := flag.Bool("reset", false, "drop every table before seeding (destroys all data)")
	flag.Parse()

	config.LoadEnv()
	cfg := config.Load()

	if err := logging.InitLogger(cfg.Server.Production); err != nil {
		panic(err)
	}
	defer logging.Sync()
	log := logging.Logger

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	adminName := config.GetEnv("ADMIN_NAME", "Administrator")
	if adminEmail == "" || adminPassword == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set in environment")
	}

	db, err := repositories.InitDB(cfg.Database, log)
	if err != nil {
		log.Fatal("database initialisation failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if *reset {
		if err := repositories.DropAllTables(db); err != nil {
			log.Fatal("failed to drop tables", zap.Error(err))
		}
		if err := db.AutoMigrate(repositories.Models...); err != nil {
			log.Fatal("failed to migrate schema", zap.Error(err))
		}
		log.Warn("all tables dropped and recreated")
	}

	store := repositories.NewStore(db)
	users := user.NewService(ledger.NewService(store, nil, ledger.Config{}, log, nil), store, 0, log)

	admin, err := users.CreateRoot(context.Background(), user.RootRequest{
		FullName: adminName,
		Email:    adminEmail,
		Password: adminPassword,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			log.Info("admin user already exists", zap.String("email", adminEmail))
			return
		}
		log.Fatal("failed to create admin user", zap.Error(err))
	}

	log.Info("admin account created",
		zap.Uint("user_id", admin.ID),
		zap.String("email", admin.Email),
		zap.String("referral_code", admin.ReferralCode))
}
