package models

import "time"

// Snapshot gruppiert alles, was ein Ingest-Lauf geholt hat. Wird nach dem Anlegen nicht mehr verändert.
type Snapshot struct {
	SnapshotID string    `json:"snapshot_id" gorm:"column:snapshot_id;primaryKey;size:64"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
	Notes      string    `json:"notes,omitempty" gorm:"type:text"`
}

// TableName gibt explizit den Tabellennamen an.
func (Snapshot) TableName() string {
	return "snapshots"
}
