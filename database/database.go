package database

import (
	"fmt"
	"os"

	"stormcloud/config"
	"stormcloud/models"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect initializes the postgres database connection.
func Connect(cfg *config.Config) error {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("database connection established")
	return nil
}

// ConnectSQLite opens a sqlite database at the given path (":memory:" for
// tests) and assigns it to DB.
func ConnectSQLite(path string) error {
	// The pure-Go sqlite driver gives every pooled connection its own
	// private ":memory:" database, so back the test database with a
	// throwaway file to share one schema across all connections.
	if path == ":memory:" {
		f, err := os.CreateTemp("", "stormcloud-test-*.db")
		if err != nil {
			return fmt.Errorf("failed to create sqlite temp file: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close sqlite temp file: %w", err)
		}
		path = f.Name()
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return nil
}

// Migrate runs auto-migration for all models.
func Migrate() error {
	err := DB.AutoMigrate(
		&models.Organization{},
		&models.Account{},
		&models.APIKey{},
		&models.StoredFile{},
		&models.ShareLink{},
		&models.FileAuditLog{},
		&models.ContentMapping{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// CreateInitialAdmin creates the initial admin account from config.
func CreateInitialAdmin(cfg *config.Config) error {
	var existing models.Account
	result := DB.Where("username = ?", cfg.AdminUsername).First(&existing)
	if result.Error == nil {
		log.Debug().Str("username", cfg.AdminUsername).Msg("admin account already exists")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := models.Account{
		Username:     cfg.AdminUsername,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}

	if err := DB.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Info().Str("username", cfg.AdminUsername).Msg("created admin account")
	return nil
}
