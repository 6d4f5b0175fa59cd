package database

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/barberq/scheduling-core/internal/config"
	"github.com/barberq/scheduling-core/internal/models"
)

// Connect connects to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate runs database migrations.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("failed to create uuid extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.Service{},
		&models.AddOn{},
		&models.Barber{},
		&models.DayOff{},
		&models.Appointment{},
		&models.IdempotencyRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to run auto-migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createIndexes creates additional indexes for the query patterns C3
// and C6 actually run: timeline reconstruction (barber, date, status)
// and day-off lookups.
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_appt_barber_date_status ON appointments(barber_id, service_date, status)",
		"CREATE INDEX IF NOT EXISTS idx_appt_kind ON appointments(kind)",
		"CREATE INDEX IF NOT EXISTS idx_day_offs_barber_range ON day_offs(barber_id, start_date, end_date)",
	}
	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// ConnectRedis connects to Redis. A nil, non-error return is never
// produced here; the dev-mode graceful-degradation decision (continue
// with a nil client) is made by the caller in main.go, matching the
// teacher's pattern.
func ConnectRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}
