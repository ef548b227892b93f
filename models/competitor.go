package models

// Competitor ist ein kanonischer Firmenname aus der Wettbewerberliste.
type Competitor struct {
	CompetitorID  uint   `json:"competitor_id" gorm:"column:competitor_id;primaryKey"`
	CanonicalName string `json:"canonical_name" gorm:"uniqueIndex;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (Competitor) TableName() string {
	return "competitors"
}

// CompetitorAlias ist eine Schreibweise, die als Teilstring in Affiliationen gesucht wird.
type CompetitorAlias struct {
	ID           uint   `json:"-" gorm:"primaryKey"`
	CompetitorID uint   `json:"competitor_id" gorm:"column:competitor_id;uniqueIndex:idx_competitor_alias;not null"`
	Alias        string `json:"alias" gorm:"uniqueIndex:idx_competitor_alias;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (CompetitorAlias) TableName() string {
	return "competitor_aliases"
}

// MentionTypeAffiliation markiert Treffer aus Affiliationen bzw. Sponsoren.
const MentionTypeAffiliation = "affiliation"

// CompetitorMention belegt, dass ein Alias in einer Affiliation des Dokuments vorkam.
type CompetitorMention struct {
	ID           uint   `json:"-" gorm:"primaryKey"`
	DocID        string `json:"doc_id" gorm:"column:doc_id;uniqueIndex:idx_mention_unique;size:64;not null"`
	CompetitorID uint   `json:"competitor_id" gorm:"column:competitor_id;uniqueIndex:idx_mention_unique;not null"`
	MatchText    string `json:"match_text" gorm:"uniqueIndex:idx_mention_unique;not null"`
	MentionType  string `json:"mention_type" gorm:"size:32;default:'affiliation'"`
}

// TableName gibt explizit den Tabellennamen an.
func (CompetitorMention) TableName() string {
	return "competitor_mentions"
}
