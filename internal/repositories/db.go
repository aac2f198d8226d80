package repositories

import (
	"fmt"
	"log"
	"os"
	"time"

	"yieldtree/internal/config"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories/cache"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table owned by the module, in migration order.
var Models = []interface{}{
	&models.User{},
	&models.Wallet{},
	&models.Transaction{},
	&models.Investment{},
}

// DSN builds the postgres connection string for cfg.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode)
}

// InitDB opens the postgres connection, applies pool settings and migrations.
func InitDB(cfg config.DatabaseConfig, l *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	l.Info("postgres connected and migrations applied",
		zap.String("host", cfg.Host), zap.String("database", cfg.Name))
	return db, nil
}

// InitCache connects the redis-backed cache service.
func InitCache(cfg config.RedisConfig) *cache.CacheService {
	client := cache.NewRedisClient(&cache.RedisConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return cache.NewCacheService(client, cfg.CacheTTL)
}

// Configure GORM logger to ignore "record not found" errors
func gormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
}

// DropAllTables removes every table in Models. Used by the seed tool's reset flag.
func DropAllTables(db *gorm.DB) error {
	return db.Migrator().DropTable(Models...)
}
