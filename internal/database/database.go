package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/config"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	slog.Info("database connected")
	return nil
}

// AllModels lists every table the portal owns, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserRole{},
		&models.UserProfile{},
		&models.RefreshToken{},
		&models.PasswordResetToken{},
		&models.SystemLog{},

		&models.Event{},
		&models.Job{},
		&models.JobReport{},
		&models.Resource{},
		&models.ResourceReport{},
		&models.CommunityAlert{},
		&models.SpecialEvent{},
		&models.SpecialEventDay{},
		&models.SpecialEventAssignment{},

		&models.PendingEvent{},
		&models.PendingResource{},
		&models.PendingCommunityAlert{},
		&models.PendingSpecialEvent{},
		&models.PendingResourceModification{},
		&models.PendingJobModification{},
		&models.PendingCivicModification{},

		&models.CivicOrganization{},
		&models.CivicSession{},
		&models.CivicAnnouncement{},
		&models.CivicNewsletter{},
		&models.CivicLeader{},
		&models.CivicImportantLink{},
		&models.CivicGalleryPhoto{},

		&models.GovernmentAgency{},
		&models.PdfContent{},
	}
}

// Migrate runs AutoMigrate for every portal model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
