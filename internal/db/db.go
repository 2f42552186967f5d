package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"emotional-cup-backend/config"
	"emotional-cup-backend/internal/migrations"
	"emotional-cup-backend/internal/model"
)

const connectPingTimeout = 5 * time.Second

// InitLocal opens the on-device SQLite database and migrates its tables.
func InitLocal(cfg *config.StorageConfig) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	if err := MigrateLocal(db); err != nil {
		return nil, err
	}
	log.Printf("Local database ready at %s", cfg.Path)
	return db, nil
}

// MigrateLocal creates the local tables.
func MigrateLocal(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Document{},
		&model.PushSubscription{},
		&model.SubscriptionVessel{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// InitRemote connects to the hosted document store, applies its schema
// migrations and returns both the GORM handle and the DSN used, which the
// change listener needs for its own connection.
func InitRemote(cfg *config.RemoteConfig) (*gorm.DB, string, error) {
	dsn, err := RemoteDSN(cfg.URL, cfg.AnonKey)
	if err != nil {
		return nil, "", err
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open remote database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), connectPingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, "", fmt.Errorf("failed to ping remote database: %w", err)
	}

	log.Println("Running remote schema migrations...")
	if err := migrations.RunMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, "", err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		sqlDB.Close()
		return nil, "", fmt.Errorf("failed to wrap remote database: %w", err)
	}

	log.Println("Remote database initialization complete.")
	return db, dsn, nil
}

// RemoteDSN injects the anon key as the password of the remote URL.
func RemoteDSN(rawURL, anonKey string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid remote url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("invalid remote url: unsupported scheme %q", u.Scheme)
	}
	user := "anon"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, anonKey)
	return u.String(), nil
}
