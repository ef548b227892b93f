package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"competitor-watch/models"
	"competitor-watch/providers"
	"competitor-watch/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotIDLayout ist lexikografisch sortierbar und dateisystemtauglich.
const SnapshotIDLayout = "2006-01-02T15-04-05.000Z"

// NewSnapshotID erzeugt eine Snapshot-ID aus einem Zeitpunkt (UTC).
func NewSnapshotID(t time.Time) string {
	return t.UTC().Format(SnapshotIDLayout)
}

// Store ist die Persistenzgrenze: Dokumente, Affiliationen, Snapshots, Erwähnungen und Stammdaten.
type Store struct {
	DB      *gorm.DB
	Archive storage.Archive
	Logger  *zap.Logger
	Now     func() time.Time
}

// NewStore erstellt einen Store über einer geöffneten Datenbank.
func NewStore(db *gorm.DB, archive storage.Archive, logger *zap.Logger) *Store {
	return &Store{DB: db, Archive: archive, Logger: logger, Now: time.Now}
}

// TaggedDocument ist ein Dokument mit mindestens einer Wettbewerber-Erwähnung.
type TaggedDocument struct {
	models.Document
	Competitors []string `json:"competitors"`
}

// NewItem ist ein Dokument, das im vorherigen Snapshot noch nicht enthalten war.
type NewItem struct {
	models.Document
	HasCompetitor bool `json:"has_competitor_affiliation"`
}

// AffiliationRow ist eine Affiliation samt Dokument, wie der Tagger sie durchsucht.
type AffiliationRow struct {
	DocID           string
	AffiliationText string
}

// EnsureSnapshot legt den Snapshot an, falls er fehlt, und gibt die ID zurück.
// Bei leerer ID wird eine neue aus der aktuellen Zeit erzeugt.
func (s *Store) EnsureSnapshot(ctx context.Context, snapshotID, notes string) (string, error) {
	now := s.Now().UTC()
	if snapshotID == "" {
		snapshotID = NewSnapshotID(now)
	}
	snap := models.Snapshot{SnapshotID: snapshotID, CreatedAt: now, Notes: notes}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "snapshot_id"}}, DoNothing: true}).
		Create(&snap).Error
	if err != nil {
		return "", fmt.Errorf("fehler beim Anlegen des Snapshots %s: %w", snapshotID, err)
	}
	return snapshotID, nil
}

// Upsert archiviert die Rohdaten jedes Datensatzes und schreibt danach alle Dokumente in einer
// Transaktion. Ein bestehendes Dokument wird vollständig ersetzt und wandert in den neuen Snapshot;
// seine Affiliationen werden neu geschrieben. Schlägt ein Datensatz fehl, bleibt die Datenbank unverändert.
func (s *Store) Upsert(ctx context.Context, records []*providers.Record, snapshotID string) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	now := s.Now().UTC()

	type row struct {
		doc  models.Document
		affs []models.Affiliation
	}
	rows := make([]row, 0, len(records))

	// 1. Provenienz ablegen
	for _, rec := range records {
		payload := rec.Provenance()
		payload["snapshot_id"] = snapshotID
		payload["ingested_at"] = now.Format(time.RFC3339Nano)
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return 0, fmt.Errorf("provenance for %s: %w", rec.DocID(), err)
		}
		location, err := s.Archive.Put(ctx, storage.ArchiveKey(snapshotID, string(rec.Source), rec.NativeID), data)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row{doc: toDocument(rec, snapshotID, now, location), affs: toAffiliations(rec)})
	}

	// 2. Dokumente und Affiliationen atomar schreiben
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			r := &rows[i]
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "doc_id"}},
				UpdateAll: true,
			}).Create(&r.doc).Error; err != nil {
				return fmt.Errorf("upsert %s: %w", r.doc.DocID, err)
			}
			if err := tx.Where("doc_id = ?", r.doc.DocID).Delete(&models.Affiliation{}).Error; err != nil {
				return fmt.Errorf("clear affiliations of %s: %w", r.doc.DocID, err)
			}
			if len(r.affs) > 0 {
				if err := tx.Create(&r.affs).Error; err != nil {
					return fmt.Errorf("insert affiliations of %s: %w", r.doc.DocID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Logger.Debug("Dokumente gespeichert", zap.String("snapshot_id", snapshotID), zap.Int("count", len(rows)))
	return len(rows), nil
}

func toDocument(rec *providers.Record, snapshotID string, now time.Time, location string) models.Document {
	doc := models.Document{
		DocID:           rec.DocID(),
		Source:          rec.Source,
		SnapshotID:      snapshotID,
		Title:           rec.Title,
		Abstract:        rec.Abstract,
		URL:             rec.URL,
		PublishedDate:   rec.PublishedDate.String(),
		EntryDate:       now,
		LastUpdated:     rec.LastUpdated.String(),
		PublicationType: rec.PublicationType(),
		RawJSONPath:     location,
	}
	if rec.Source == models.SourcePubMed {
		doc.EpubDate = rec.EpubDate.String()
	}
	return doc
}

func toAffiliations(rec *providers.Record) []models.Affiliation {
	affs := make([]models.Affiliation, 0, len(rec.Affiliations))
	for i, text := range rec.Affiliations {
		affs = append(affs, models.Affiliation{DocID: rec.DocID(), Position: i, AffiliationText: text})
	}
	return affs
}

// ListSnapshots liefert alle Snapshots, neueste zuerst.
func (s *Store) ListSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	var snaps []models.Snapshot
	err := s.DB.WithContext(ctx).Order("created_at desc").Order("snapshot_id desc").Find(&snaps).Error
	return snaps, err
}

// LatestSnapshotID gibt die ID des zuletzt angelegten Snapshots zurück; false, wenn es keinen gibt.
func (s *Store) LatestSnapshotID(ctx context.Context) (string, bool, error) {
	var snap models.Snapshot
	err := s.DB.WithContext(ctx).Order("created_at desc").Order("snapshot_id desc").Take(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return snap.SnapshotID, true, nil
}

// Snapshot lädt einen Snapshot oder liefert ErrSnapshotNotFound.
func (s *Store) Snapshot(ctx context.Context, snapshotID string) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := s.DB.WithContext(ctx).Where("snapshot_id = ?", snapshotID).Take(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// SnapshotDocuments liefert die Dokumente, die aktuell dem Snapshot zugeordnet sind.
func (s *Store) SnapshotDocuments(ctx context.Context, snapshotID string) ([]models.Document, error) {
	if _, err := s.Snapshot(ctx, snapshotID); err != nil {
		return nil, err
	}
	var docs []models.Document
	err := s.DB.WithContext(ctx).
		Where("snapshot_id = ?", snapshotID).
		Order("published_date desc").Order("doc_id").
		Find(&docs).Error
	return docs, err
}

// TaggedDocuments liefert die Dokumente des Snapshots mit mindestens einer Erwähnung,
// jeweils mit den kanonischen Namen der erwähnten Wettbewerber.
func (s *Store) TaggedDocuments(ctx context.Context, snapshotID string) ([]TaggedDocument, error) {
	if _, err := s.Snapshot(ctx, snapshotID); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	var docs []models.Document
	err := db.Where("snapshot_id = ?", snapshotID).
		Where("doc_id IN (?)", db.Model(&models.CompetitorMention{}).Select("doc_id")).
		Order("published_date desc").Order("doc_id").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []TaggedDocument{}, nil
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}
	var pairs []struct {
		DocID         string
		CanonicalName string
	}
	err = db.Table("competitor_mentions m").
		Select("DISTINCT m.doc_id, c.canonical_name").
		Joins("JOIN competitors c ON c.competitor_id = m.competitor_id").
		Where("m.doc_id IN ?", ids).
		Order("c.canonical_name").
		Scan(&pairs).Error
	if err != nil {
		return nil, err
	}
	names := make(map[string][]string, len(docs))
	for _, p := range pairs {
		names[p.DocID] = append(names[p.DocID], p.CanonicalName)
	}

	out := make([]TaggedDocument, len(docs))
	for i, d := range docs {
		out[i] = TaggedDocument{Document: d, Competitors: names[d.DocID]}
	}
	return out, nil
}

// NewSincePrevious liefert die Dokumente des Snapshots, deren doc_id im direkt davor angelegten
// Snapshot nicht vorkommt. Ohne Vorgänger ist alles neu.
func (s *Store) NewSincePrevious(ctx context.Context, snapshotID string) ([]NewItem, string, error) {
	current, err := s.Snapshot(ctx, snapshotID)
	if err != nil {
		return nil, "", err
	}
	db := s.DB.WithContext(ctx)

	var prev models.Snapshot
	err = db.Where("created_at < ? OR (created_at = ? AND snapshot_id < ?)", current.CreatedAt, current.CreatedAt, current.SnapshotID).
		Order("created_at desc").Order("snapshot_id desc").
		Take(&prev).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	q := db.Where("snapshot_id = ?", snapshotID)
	if prev.SnapshotID != "" {
		q = q.Where("doc_id NOT IN (?)", db.Model(&models.Document{}).Select("doc_id").Where("snapshot_id = ?", prev.SnapshotID))
	}
	var docs []models.Document
	if err := q.Order("published_date desc").Order("doc_id").Find(&docs).Error; err != nil {
		return nil, "", err
	}

	tagged := map[string]bool{}
	if len(docs) > 0 {
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.DocID
		}
		var withMention []string
		if err := db.Model(&models.CompetitorMention{}).Distinct("doc_id").Where("doc_id IN ?", ids).Pluck("doc_id", &withMention).Error; err != nil {
			return nil, "", err
		}
		for _, id := range withMention {
			tagged[id] = true
		}
	}

	items := make([]NewItem, len(docs))
	for i, d := range docs {
		items[i] = NewItem{Document: d, HasCompetitor: tagged[d.DocID]}
	}
	return items, prev.SnapshotID, nil
}

// DocumentAffiliations liefert die Affiliationen eines Dokuments in Quellreihenfolge.
func (s *Store) DocumentAffiliations(ctx context.Context, docID string) ([]string, error) {
	var texts []string
	err := s.DB.WithContext(ctx).Model(&models.Affiliation{}).
		Where("doc_id = ?", docID).Order("position").Order("id").
		Pluck("affiliation_text", &texts).Error
	return texts, err
}

// LoadAliases lädt die komplette Alias-Tabelle ohne Cache.
func (s *Store) LoadAliases(ctx context.Context) (AliasLookup, error) {
	var aliases []models.CompetitorAlias
	err := s.DB.WithContext(ctx).
		Joins("JOIN competitors ON competitors.competitor_id = competitor_aliases.competitor_id").
		Order("competitor_aliases.competitor_id").Order("competitor_aliases.id").
		Find(&aliases).Error
	if err != nil {
		return nil, err
	}
	lookup := make(AliasLookup, 0, len(aliases))
	for _, a := range aliases {
		if strings.TrimSpace(a.Alias) == "" {
			continue
		}
		lookup = append(lookup, AliasEntry{CompetitorID: a.CompetitorID, Alias: a.Alias})
	}
	return lookup, nil
}

// SnapshotAffiliations lädt alle Affiliationen der Dokumente eines Snapshots.
func (s *Store) SnapshotAffiliations(ctx context.Context, snapshotID string) ([]AffiliationRow, error) {
	var rows []AffiliationRow
	err := s.DB.WithContext(ctx).Table("affiliations a").
		Select("a.doc_id, a.affiliation_text").
		Joins("JOIN documents d ON d.doc_id = a.doc_id").
		Where("d.snapshot_id = ?", snapshotID).
		Order("a.doc_id").Order("a.position").
		Scan(&rows).Error
	return rows, err
}

// RecordMentions fügt Erwähnungen ein; bereits vorhandene Tripel bleiben unverändert.
func (s *Store) RecordMentions(ctx context.Context, mentions []Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	rows := make([]models.CompetitorMention, len(mentions))
	for i, m := range mentions {
		rows[i] = models.CompetitorMention{
			DocID:        m.DocID,
			CompetitorID: m.CompetitorID,
			MatchText:    m.Alias,
			MentionType:  models.MentionTypeAffiliation,
		}
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "doc_id"}, {Name: "competitor_id"}, {Name: "match_text"}},
				DoNothing: true,
			}).Create(&rows[i]).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// CompetitorWithAliases ist ein Wettbewerber samt seiner Aliase.
type CompetitorWithAliases struct {
	models.Competitor
	Aliases []string `json:"aliases"`
}

// Competitors liefert alle Wettbewerber mit Aliasen, alphabetisch.
func (s *Store) Competitors(ctx context.Context) ([]CompetitorWithAliases, error) {
	db := s.DB.WithContext(ctx)
	var comps []models.Competitor
	if err := db.Order("canonical_name").Find(&comps).Error; err != nil {
		return nil, err
	}
	var aliases []models.CompetitorAlias
	if err := db.Order("id").Find(&aliases).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint][]string)
	for _, a := range aliases {
		byID[a.CompetitorID] = append(byID[a.CompetitorID], a.Alias)
	}
	out := make([]CompetitorWithAliases, len(comps))
	for i, c := range comps {
		out[i] = CompetitorWithAliases{Competitor: c, Aliases: byID[c.CompetitorID]}
	}
	return out, nil
}

// UpsertCompetitor legt den Wettbewerber an, falls nötig, und ergänzt fehlende Aliase.
func (s *Store) UpsertCompetitor(ctx context.Context, name string, aliases []string) (uint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: competitor name is empty", ErrInvalidRequest)
	}
	var id uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comp := models.Competitor{CanonicalName: name}
		if err := tx.Where(models.Competitor{CanonicalName: name}).FirstOrCreate(&comp).Error; err != nil {
			return err
		}
		id = comp.CompetitorID
		for _, alias := range aliases {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "competitor_id"}, {Name: "alias"}},
				DoNothing: true,
			}).Create(&models.CompetitorAlias{CompetitorID: id, Alias: alias}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

// UpsertMolecule legt einen Wirkstoff an oder aktualisiert seine Synonyme.
func (s *Store) UpsertMolecule(ctx context.Context, name string, synonyms []string) (*models.Molecule, error) {
	mol := models.Molecule{Name: strings.TrimSpace(name), Synonyms: strings.Join(synonyms, "|")}
	if mol.Name == "" {
		return nil, fmt.Errorf("%w: molecule name is empty", ErrInvalidRequest)
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"synonyms"}),
	}).Create(&mol).Error
	if err != nil {
		return nil, err
	}
	return &mol, nil
}

// CreateProfile legt ein aktives Überwachungsprofil an. Ist ein Wirkstoff angegeben, muss er existieren.
func (s *Store) CreateProfile(ctx context.Context, name, moleculeName, queryTerms, frequency string) (*models.MonitoringProfile, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(queryTerms) == "" {
		return nil, fmt.Errorf("%w: profile name and query terms are required", ErrInvalidRequest)
	}
	if frequency == "" {
		frequency = "daily"
	}
	profile := models.MonitoringProfile{
		Name:       name,
		QueryTerms: queryTerms,
		Frequency:  frequency,
		IsActive:   true,
		CreatedAt:  s.Now().UTC(),
	}

	db := s.DB.WithContext(ctx)
	if moleculeName != "" {
		var mol models.Molecule
		err := db.Where("name = ?", moleculeName).Take(&mol).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: molecule not found: %s", ErrInvalidRequest, moleculeName)
		}
		if err != nil {
			return nil, err
		}
		profile.MoleculeID = &mol.ID
	}
	if err := db.Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// Profiles liefert alle Überwachungsprofile.
func (s *Store) Profiles(ctx context.Context, activeOnly bool) ([]models.MonitoringProfile, error) {
	q := s.DB.WithContext(ctx).Order("profile_id")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var profiles []models.MonitoringProfile
	err := q.Find(&profiles).Error
	return profiles, err
}

// ActiveProfile lädt ein aktives Profil oder liefert ErrProfileNotFound.
func (s *Store) ActiveProfile(ctx context.Context, profileID uint) (*models.MonitoringProfile, error) {
	var p models.MonitoringProfile
	err := s.DB.WithContext(ctx).Where("profile_id = ? AND is_active = ?", profileID, true).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: active profile %d", ErrProfileNotFound, profileID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LatestActiveProfile lädt das zuletzt angelegte aktive Profil.
func (s *Store) LatestActiveProfile(ctx context.Context) (*models.MonitoringProfile, error) {
	var p models.MonitoringProfile
	err := s.DB.WithContext(ctx).Where("is_active = ?", true).
		Order("created_at desc").Order("profile_id desc").Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no active profile", ErrProfileNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetProfileSnapshot merkt sich den letzten Snapshot eines Profils.
func (s *Store) SetProfileSnapshot(ctx context.Context, profileID uint, snapshotID string) error {
	return s.DB.WithContext(ctx).Model(&models.MonitoringProfile{}).
		Where("profile_id = ?", profileID).
		Update("last_snapshot_id", snapshotID).Error
}
