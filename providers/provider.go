package providers

import (
	"context"
	"strings"
	"unicode"

	"competitor-watch/dates"
	"competitor-watch/models"

	"golang.org/x/text/unicode/norm"
)

// Provider ist das Interface, das jede Quelle (PubMed, ClinicalTrials.gov) implementieren muss.
type Provider interface {
	// Search holt alle Kandidaten der Abfrage, wendet das Zeitfenster an und liefert die Zählwerte mit.
	Search(ctx context.Context, q Query) (*Result, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "pubmed").
	Name() string
}

// Query beschreibt eine Abfrage an eine Quelle.
type Query struct {
	Term         string
	Intervention string
	Window       *dates.Window
	MaxResults   int
	// PageSize gilt nur für paginierte Quellen; 0 = Konfigurationswert.
	PageSize int
}

// Result enthält die übrig gebliebenen Datensätze und die Diagnosezahlen eines Laufs.
type Result struct {
	Records []*Record
	// Fetched zählt die geparsten Kandidaten vor dem Fensterfilter.
	Fetched int
	// FilteredOut zählt Kandidaten mit bekanntem Datum außerhalb des Fensters.
	FilteredOut int
	// KeptUndated zählt Kandidaten, die wegen unlesbarem Datum behalten wurden.
	KeptUndated int
}

// Record ist der kanonische, quellenunabhängige Datensatz vor der Persistierung.
type Record struct {
	Source   models.Source
	NativeID string

	Title            string
	Abstract         string
	URL              string
	PublishedDate    dates.PartialDate
	EpubDate         dates.PartialDate
	LastUpdated      dates.PartialDate
	PublicationTypes []string
	Affiliations     []string

	// Nur ClinicalTrials.gov
	StartDate      dates.PartialDate
	CompletionDate dates.PartialDate
	FirstPosted    dates.PartialDate
	Phases         []string
	Conditions     []string
	LeadSponsor    string
	Collaborators  []string
}

// DocID liefert die Dokument-ID inkl. Namensraum-Präfix.
func (r *Record) DocID() string {
	switch r.Source {
	case models.SourceCTGov:
		return "NCT:" + r.NativeID
	default:
		return "PMID:" + r.NativeID
	}
}

// EffectiveDate ist das Datum der Erstveröffentlichung, nach dem gefiltert wird.
func (r *Record) EffectiveDate() dates.PartialDate {
	switch r.Source {
	case models.SourceCTGov:
		if r.FirstPosted.Known() {
			return r.FirstPosted
		}
		return r.StartDate
	default:
		if r.EpubDate.Known() {
			return r.EpubDate
		}
		return r.PublishedDate
	}
}

// PublicationType ist der erste gelieferte Typ oder leer.
func (r *Record) PublicationType() string {
	if len(r.PublicationTypes) == 0 {
		return ""
	}
	return r.PublicationTypes[0]
}

// Provenance gibt die geparsten Felder für das Rohdaten-Archiv zurück.
func (r *Record) Provenance() map[string]any {
	if r.Source == models.SourceCTGov {
		return map[string]any{
			"nct_id":             r.NativeID,
			"title":              r.Title,
			"abstract":           r.Abstract,
			"start_date":         optional(r.StartDate),
			"completion_date":    optional(r.CompletionDate),
			"first_posted":       optional(r.FirstPosted),
			"last_updated":       optional(r.LastUpdated),
			"lead_sponsor_name":  r.LeadSponsor,
			"collaborator_names": nonNil(r.Collaborators),
			"conditions":         nonNil(r.Conditions),
			"phases":             nonNil(r.Phases),
			"url":                r.URL,
		}
	}
	return map[string]any{
		"pmid":              r.NativeID,
		"title":             r.Title,
		"abstract":          r.Abstract,
		"pub_date":          optional(r.PublishedDate),
		"epub_date":         optional(r.EpubDate),
		"publication_types": nonNil(r.PublicationTypes),
		"affiliations":      nonNil(r.Affiliations),
		"url":               r.URL,
	}
}

// FilterWindow wendet das Fenster auf das effektive Datum an. Unlesbare Daten bleiben drin.
func FilterWindow(records []*Record, w *dates.Window) (kept []*Record, dropped, undated int) {
	if w == nil {
		return records, 0, 0
	}
	kept = make([]*Record, 0, len(records))
	for _, rec := range records {
		eff := rec.EffectiveDate()
		if _, ok := eff.Ordinal(); !ok {
			undated++
			kept = append(kept, rec)
			continue
		}
		if w.Keep(eff) {
			kept = append(kept, rec)
			continue
		}
		dropped++
	}
	return kept, dropped, undated
}

// CleanText fasst Whitespace zusammen und normalisiert auf NFC, damit Aliase zuverlässig treffen.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func optional(d dates.PartialDate) any {
	if !d.Known() {
		return nil
	}
	return d.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
