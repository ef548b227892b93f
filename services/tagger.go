package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// AliasEntry ordnet eine Schreibweise einem Wettbewerber zu.
type AliasEntry struct {
	CompetitorID uint
	Alias        string
}

// AliasLookup ist die Alias-Tabelle eines Tagging-Laufs. Sie wird pro Lauf frisch geladen.
type AliasLookup []AliasEntry

// Mention ist ein Treffer eines Alias in einer Affiliation.
type Mention struct {
	DocID        string
	CompetitorID uint
	Alias        string
}

// Match prüft jede (Affiliation, Alias)-Kombination auf Teilstring-Enthaltensein ohne Beachtung
// der Groß-/Kleinschreibung. Wortgrenzen werden nicht geprüft: "Johnson" trifft auch
// "Johnson Matthey". Jeder Treffer zählt, auch wenn dasselbe Tripel mehrfach entsteht.
func Match(lookup AliasLookup, rows []AffiliationRow) []Mention {
	lowered := make([]string, len(lookup))
	for i, a := range lookup {
		lowered[i] = strings.ToLower(a.Alias)
	}

	var out []Mention
	for _, row := range rows {
		text := strings.ToLower(row.AffiliationText)
		for i, a := range lookup {
			if lowered[i] == "" {
				continue
			}
			if strings.Contains(text, lowered[i]) {
				out = append(out, Mention{DocID: row.DocID, CompetitorID: a.CompetitorID, Alias: a.Alias})
			}
		}
	}
	return out
}

// Tagger verknüpft die Dokumente eines Snapshots mit Wettbewerbern.
type Tagger struct {
	Store  *Store
	Logger *zap.Logger
}

// NewTagger erstellt einen neuen Tagger.
func NewTagger(store *Store, logger *zap.Logger) *Tagger {
	return &Tagger{Store: store, Logger: logger}
}

// Tag gibt die Zahl der ausgewerteten Treffer zurück, nicht die Zahl neuer Zeilen.
// Ein zweiter Lauf über denselben Snapshot liefert dieselbe Zahl und legt nichts Neues an.
func (t *Tagger) Tag(ctx context.Context, snapshotID string) (int, error) {
	lookup, err := t.Store.LoadAliases(ctx)
	if err != nil {
		return 0, fmt.Errorf("fehler beim Laden der Aliase: %w", err)
	}
	rows, err := t.Store.SnapshotAffiliations(ctx, snapshotID)
	if err != nil {
		return 0, fmt.Errorf("fehler beim Laden der Affiliationen: %w", err)
	}

	mentions := Match(lookup, rows)
	if err := t.Store.RecordMentions(ctx, mentions); err != nil {
		return 0, fmt.Errorf("fehler beim Speichern der Erwähnungen: %w", err)
	}

	t.Logger.Info("Tagging abgeschlossen",
		zap.String("snapshot_id", snapshotID),
		zap.Int("aliases", len(lookup)),
		zap.Int("affiliations", len(rows)),
		zap.Int("matches", len(mentions)))
	return len(mentions), nil
}
