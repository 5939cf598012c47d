package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations executes the migrations AutoMigrate cannot express
func RunMigrations(db *gorm.DB) error {
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// lookupIndexes are kept on one line each; gorm's sqlite migrator re-parses
// the stored DDL on every AutoMigrate and rejects multi-line statements
var lookupIndexes = []string{
	// recapture checks filter cases by external id within a court instance
	"CREATE INDEX IF NOT EXISTS idx_cases_lookup ON cases(external_id, court, instance)",
	"CREATE INDEX IF NOT EXISTS idx_capture_logs_created ON capture_logs(created_at)",
	"CREATE INDEX IF NOT EXISTS idx_hearings_starts_at ON hearings(starts_at)",
	"CREATE INDEX IF NOT EXISTS idx_pending_filings_deadline ON pending_filings(deadline_at, deadline_expired)",
}

// createIndexes creates the lookup indexes used by capture runs
func createIndexes(db *gorm.DB) error {
	for _, stmt := range lookupIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
