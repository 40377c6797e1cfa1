package main

import (
	"log"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/database"
)

// Resets PostgreSQL id sequences after rows were copied in with explicit ids.
func main() {
	cfg := config.LoadConfig()
	if !cfg.UsePostgres() {
		log.Fatal("sync_sequences only applies to PostgreSQL; set DB_HOST")
	}
	db := database.InitGorm(cfg)

	// Tables keyed by serial ids. Messages and customers use uuids.
	tables := []string{
		"reply_jobs",
		"system_settings",
	}

	log.Println("Syncing PostgreSQL sequences...")

	for _, table := range tables {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			log.Printf("Error syncing sequence for %s: %v", table, err)
		} else {
			log.Printf("Successfully synced sequence for %s", table)
		}
	}

	log.Println("DONE!")
}
