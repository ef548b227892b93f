package models

import "time"

// Source ist der Namensraum einer nativen ID.
type Source string

const (
	SourcePubMed Source = "pubmed"
	SourceCTGov  Source = "ctgov"
)

// Document ist der kanonische Datensatz eines Papers oder einer Studie.
// Pro (Quelle, native ID) existiert genau eine Zeile; ein erneuter Ingest ersetzt sie.
type Document struct {
	DocID           string    `json:"doc_id" gorm:"column:doc_id;primaryKey;size:64"`
	Source          Source    `json:"source" gorm:"index;size:16;not null"`
	SnapshotID      string    `json:"snapshot_id" gorm:"column:snapshot_id;index;size:64;not null"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract,omitempty" gorm:"type:text"`
	URL             string    `json:"url"`
	PublishedDate   string    `json:"published_date,omitempty" gorm:"index;size:16"`
	EpubDate        string    `json:"epub_date,omitempty" gorm:"size:16"`
	EntryDate       time.Time `json:"entry_date"`
	LastUpdated     string    `json:"last_updated,omitempty" gorm:"size:16"`
	PublicationType string    `json:"publication_type,omitempty"`
	RawJSONPath     string    `json:"raw_json_path,omitempty" gorm:"column:raw_json_path"`
}

// TableName gibt explizit den Tabellennamen an.
func (Document) TableName() string {
	return "documents"
}

// Affiliation ist ein Freitext (Autoren-Affiliation oder Sponsor) eines Dokuments.
// Position hält die Reihenfolge, in der die Quelle sie geliefert hat.
type Affiliation struct {
	ID              uint   `json:"-" gorm:"primaryKey"`
	DocID           string `json:"doc_id" gorm:"column:doc_id;index;size:64;not null"`
	Position        int    `json:"position"`
	AffiliationText string `json:"affiliation_text" gorm:"type:text;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (Affiliation) TableName() string {
	return "affiliations"
}
