package models

import "gorm.io/gorm"

// Migrate legt alle Tabellen an bzw. ergänzt fehlende Spalten.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Snapshot{},
		&Document{},
		&Affiliation{},
		&Competitor{},
		&CompetitorAlias{},
		&CompetitorMention{},
		&Molecule{},
		&MonitoringProfile{},
	)
}
