// Package config loads environment-driven configuration for the
// scheduling core, including the Policy block §6 of SPEC_FULL.md names
// as "recognized options".
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the scheduling service.
type Config struct {
	Environment string
	Port        int
	LogLevel    string
	Database    DatabaseConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Policy      Policy
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URL string
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string
}

// Policy mirrors the "Config (recognized options)" table in
// SPEC_FULL.md §6. Minutes-since-midnight fields use TimeMath's
// representation directly so the engine never reparses them.
type Policy struct {
	WorkingStartMin  int
	WorkingEndMin    int
	LunchStartMin    int
	LunchEndMin      int
	SlotGranularity  int
	MinServiceDurMin int
	MaxActiveQueue   int
	SameDayCutoffMin int
	EventBufferSize  int
}

// Load reads configuration from the environment via viper. The teacher
// repo declares viper in go.mod but never calls it, reading os.Getenv
// directly instead; this wires it for real so env vars override the
// defaults set below. No config file is read.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCHEDULING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("database.url", "postgres://localhost:5432/barberq_scheduling?sslmode=disable")
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("policy.working_start", "08:00")
	v.SetDefault("policy.working_end", "17:00")
	v.SetDefault("policy.lunch_start", "12:00")
	v.SetDefault("policy.lunch_end", "13:00")
	v.SetDefault("policy.slot_granularity_min", 30)
	v.SetDefault("policy.min_service_duration_min", 30)
	v.SetDefault("policy.max_active_queue", 15)
	v.SetDefault("policy.same_day_cutoff", "16:30")
	v.SetDefault("policy.event_buffer_size", 64)

	workingStart, err := parseHHMM(v.GetString("policy.working_start"))
	if err != nil {
		return nil, fmt.Errorf("policy.working_start: %w", err)
	}
	workingEnd, err := parseHHMM(v.GetString("policy.working_end"))
	if err != nil {
		return nil, fmt.Errorf("policy.working_end: %w", err)
	}
	lunchStart, err := parseHHMM(v.GetString("policy.lunch_start"))
	if err != nil {
		return nil, fmt.Errorf("policy.lunch_start: %w", err)
	}
	lunchEnd, err := parseHHMM(v.GetString("policy.lunch_end"))
	if err != nil {
		return nil, fmt.Errorf("policy.lunch_end: %w", err)
	}
	cutoff, err := parseHHMM(v.GetString("policy.same_day_cutoff"))
	if err != nil {
		return nil, fmt.Errorf("policy.same_day_cutoff: %w", err)
	}

	return &Config{
		Environment: v.GetString("environment"),
		Port:        v.GetInt("port"),
		LogLevel:    v.GetString("log_level"),
		Database:    DatabaseConfig{URL: v.GetString("database.url")},
		Redis:       RedisConfig{URL: v.GetString("redis.url")},
		NATS:        NATSConfig{URL: v.GetString("nats.url")},
		Policy: Policy{
			WorkingStartMin:  workingStart,
			WorkingEndMin:    workingEnd,
			LunchStartMin:    lunchStart,
			LunchEndMin:      lunchEnd,
			SlotGranularity:  v.GetInt("policy.slot_granularity_min"),
			MinServiceDurMin: v.GetInt("policy.min_service_duration_min"),
			MaxActiveQueue:   v.GetInt("policy.max_active_queue"),
			SameDayCutoffMin: cutoff,
			EventBufferSize:  v.GetInt("policy.event_buffer_size"),
		},
	}, nil
}

func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid HH:MM %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
