package database

import (
	"fmt"
	"log"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitGorm connects to the configured database and migrates it, exiting on failure.
func InitGorm(cfg *config.Config) *gorm.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}

	log.Println("Database migration completed")
	return db
}

// Open connects to PostgreSQL when DB_HOST is set, otherwise to SQLite at DB_PATH.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	if cfg.UsePostgres() {
		db, err := gorm.Open(postgres.Open(PostgresDSN(cfg)), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		log.Println("Connected to PostgreSQL successfully")
		return db, nil
	}

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to SQLite at %s: %w", cfg.DBPath, err)
	}
	log.Printf("Connected to SQLite at %s", cfg.DBPath)
	return db, nil
}

// OpenMemory returns a migrated in-memory SQLite database.
// A single connection keeps every query on the same in-memory instance.
func OpenMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func PostgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
}

// Migrate creates or updates the conversation store schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Message{},
		&models.Customer{},
		&models.ReplyJob{},
		&models.SystemSetting{},
	)
}

// SyncConfig lets provider credentials stored in system_settings override the
// environment. Values only present in the environment are written back.
func SyncConfig(db *gorm.DB, cfg *config.Config) {
	settings := []struct {
		Key   string
		Value *string
	}{
		{"TWILIO_ACCOUNT_SID", &cfg.TwilioAccountSID},
		{"TWILIO_AUTH_TOKEN", &cfg.TwilioAuthToken},
		{"WHATSAPP_FROM", &cfg.WhatsAppFrom},
		{"OPENAI_MODEL", &cfg.OpenAIModel},
		{"FOLLOW_UP_MESSAGE", &cfg.FollowUpMessage},
	}

	for _, s := range settings {
		var setting models.SystemSetting
		if err := db.Where("key = ?", s.Key).First(&setting).Error; err == nil {
			// Found in DB, update memory config
			if setting.Value != "" {
				*s.Value = setting.Value
			}
		} else {
			// Not found in DB, save current config to DB
			if *s.Value != "" {
				if err := db.Create(&models.SystemSetting{Key: s.Key, Value: *s.Value}).Error; err != nil {
					log.Printf("Error saving setting %s: %v", s.Key, err)
				}
			}
		}
	}
	log.Println("System settings synchronized from database")
}
