package models

import "time"

// Molecule repräsentiert einen Wirkstoff, nach dem gesucht wird.
type Molecule struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"uniqueIndex;not null"` // z.B. "guselkumab"
	Synonyms string `json:"synonyms,omitempty"`               // durch "|" getrennt
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Molecule) TableName() string {
	return "molecules"
}

// MonitoringProfile ist eine gespeicherte PubMed-Abfrage für die regelmäßigen Läufe.
type MonitoringProfile struct {
	ProfileID      uint      `json:"profile_id" gorm:"column:profile_id;primaryKey"`
	Name           string    `json:"name" gorm:"not null"`
	MoleculeID     *uint     `json:"molecule_id,omitempty"`
	QueryTerms     string    `json:"query_terms" gorm:"type:text;not null"`
	Frequency      string    `json:"frequency" gorm:"default:'daily'"`
	IsActive       bool      `json:"is_active" gorm:"index"`
	LastSnapshotID string    `json:"last_snapshot_id,omitempty" gorm:"column:last_snapshot_id"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (MonitoringProfile) TableName() string {
	return "monitoring_profiles"
}
