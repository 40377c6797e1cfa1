package main

import (
	"log"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

// Copies the SQLite conversation store at DB_PATH into the PostgreSQL
// database named by DB_HOST and friends. Rows already present are skipped,
// so the copy can be re-run.
func main() {
	cfg := config.LoadConfig()
	if !cfg.UsePostgres() {
		log.Fatal("DB_HOST must point at the destination PostgreSQL server")
	}

	// 1. Connect to SQLite (Source)
	sqliteDB, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to SQLite: %v", err)
	}
	log.Printf("Connected to SQLite at %s", cfg.DBPath)

	// 2. Connect to PostgreSQL (Destination)
	pgDB := database.InitGorm(cfg)

	log.Println("Starting data migration...")

	migrateTable := func(tableName string, source interface{}) {
		log.Printf("Migrating table: %s", tableName)

		if err := sqliteDB.Find(source).Error; err != nil {
			log.Printf("Error reading %s from SQLite: %v", tableName, err)
			return
		}

		err := pgDB.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(source, batchSize).Error
		})
		if err != nil {
			log.Printf("Error writing %s to Postgres: %v", tableName, err)
		} else {
			log.Printf("Successfully migrated %s", tableName)
		}
	}

	// Customers first: messages reference them.
	var customers []models.Customer
	migrateTable("customers", &customers)

	var messages []models.Message
	migrateTable("messages", &messages)

	var jobs []models.ReplyJob
	migrateTable("reply_jobs", &jobs)

	var settings []models.SystemSetting
	migrateTable("system_settings", &settings)

	log.Println("Migration completed! Run sync_sequences before starting the server.")
}
