package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"competitor-watch/config"
	"competitor-watch/dates"
	"competitor-watch/models"
	"competitor-watch/providers"

	"go.uber.org/zap"
)

var (
	// ErrInvalidRequest markiert Konfigurationsfehler, die vor jedem Netzwerkaufruf erkannt werden.
	ErrInvalidRequest   = errors.New("invalid request")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrUpstream umhüllt Fehler der externen Quellen. Es wird kein Snapshot angelegt.
	ErrUpstream = errors.New("upstream source failed")
)

// PubMedRequest beschreibt einen einzelnen PubMed-Lauf.
type PubMedRequest struct {
	Query       string `json:"query"`
	Start       string `json:"start_date"`
	End         string `json:"end_date"`
	MaxResults  int    `json:"max_results"`
	SnapshotID  string `json:"snapshot_id"`
	AddToLatest bool   `json:"add_to_latest"`
	Notes       string `json:"notes"`
}

// TrialsRequest beschreibt einen einzelnen ClinicalTrials.gov-Lauf.
type TrialsRequest struct {
	Condition    string `json:"condition"`
	Intervention string `json:"intervention"`
	Start        string `json:"start_date"`
	End          string `json:"end_date"`
	MaxStudies   int    `json:"max_studies"`
	SnapshotID   string `json:"snapshot_id"`
	AddToLatest  bool   `json:"add_to_latest"`
}

// RunReport enthält die Diagnosezahlen eines Laufs.
type RunReport struct {
	SnapshotID   string        `json:"snapshot_id"`
	Source       models.Source `json:"source"`
	Query        string        `json:"query"`
	Window       string        `json:"window,omitempty"`
	Fetched      int           `json:"fetched"`
	FilteredOut  int           `json:"filtered_out"`
	KeptUndated  int           `json:"kept_undated"`
	Ingested     int           `json:"ingested"`
	Mentions     int           `json:"mentions"`
	FilterReason string        `json:"filter_reason,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// IngestService setzt einen Lauf zusammen: Quelle abfragen, Fenster anwenden, speichern, taggen.
type IngestService struct {
	Config *config.Config
	Store  *Store
	Tagger *Tagger
	PubMed providers.Provider
	Trials providers.Provider
	Queue  SummaryQueue
	Logger *zap.Logger
	Now    func() time.Time
}

// NewIngestService erstellt den Orchestrator. Ohne Queue werden Zusammenfassungen nur geloggt.
func NewIngestService(cfg *config.Config, store *Store, pubmed, trials providers.Provider, queue SummaryQueue, logger *zap.Logger) *IngestService {
	if queue == nil {
		queue = &NopSummaryQueue{Logger: logger}
	}
	return &IngestService{
		Config: cfg,
		Store:  store,
		Tagger: NewTagger(store, logger),
		PubMed: pubmed,
		Trials: trials,
		Queue:  queue,
		Logger: logger,
		Now:    time.Now,
	}
}

type runPlan struct {
	source      models.Source
	provider    providers.Provider
	query       providers.Query
	snapshotID  string
	addToLatest bool
	notes       string
}

// RunPubMed führt eine PubMed-Suche aus. Ohne Fenster gelten die letzten PUBMED_WINDOW_DAYS Tage.
func (s *IngestService) RunPubMed(ctx context.Context, req PubMedRequest) (*RunReport, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if err := checkSnapshotChoice(req.SnapshotID, req.AddToLatest); err != nil {
		return nil, err
	}
	window, err := parseWindow(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if window == nil {
		w := dates.LastDays(s.Now(), s.pubMedWindowDays())
		window = &w
	}

	notes := req.Notes
	if notes == "" {
		notes = fmt.Sprintf("PubMed ingest: query=%q, window=%s", query, window)
	}
	return s.run(ctx, runPlan{
		source:      models.SourcePubMed,
		provider:    s.PubMed,
		query:       providers.Query{Term: query, Window: window, MaxResults: req.MaxResults},
		snapshotID:  req.SnapshotID,
		addToLatest: req.AddToLatest,
		notes:       notes,
	})
}

// RunTrials führt eine ClinicalTrials.gov-Suche aus. Das Fenster ist optional, aber nur vollständig gültig.
func (s *IngestService) RunTrials(ctx context.Context, req TrialsRequest) (*RunReport, error) {
	condition := strings.TrimSpace(req.Condition)
	if condition == "" {
		return nil, fmt.Errorf("%w: condition is required", ErrInvalidRequest)
	}
	if req.MaxStudies < 0 {
		return nil, fmt.Errorf("%w: max_studies must not be negative", ErrInvalidRequest)
	}
	if err := checkSnapshotChoice(req.SnapshotID, req.AddToLatest); err != nil {
		return nil, err
	}
	window, err := parseWindow(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	intervention := strings.TrimSpace(req.Intervention)
	notes := fmt.Sprintf("ClinicalTrials.gov ingest: condition=%q", condition)
	if intervention != "" {
		notes += fmt.Sprintf(", intervention=%q", intervention)
	}
	if window != nil {
		notes += ", window=" + window.String()
	}
	return s.run(ctx, runPlan{
		source:      models.SourceCTGov,
		provider:    s.Trials,
		query:       providers.Query{Term: condition, Intervention: intervention, Window: window, MaxResults: req.MaxStudies},
		snapshotID:  req.SnapshotID,
		addToLatest: req.AddToLatest,
		notes:       notes,
	})
}

// RunProfile führt das gespeicherte PubMed-Profil über das Standardfenster aus
// und merkt sich den Snapshot am Profil.
func (s *IngestService) RunProfile(ctx context.Context, profileID uint) (*RunReport, error) {
	profile, err := s.Store.ActiveProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(profile.QueryTerms) == "" {
		return nil, fmt.Errorf("%w: profile %d has no query terms", ErrInvalidRequest, profileID)
	}

	report, err := s.RunPubMed(ctx, PubMedRequest{
		Query: profile.QueryTerms,
		Notes: fmt.Sprintf("PubMed ingest for profile %d", profile.ProfileID),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Store.SetProfileSnapshot(ctx, profile.ProfileID, report.SnapshotID); err != nil {
		return report, fmt.Errorf("fehler beim Aktualisieren des Profils %d: %w", profile.ProfileID, err)
	}
	return report, nil
}

// RunActiveProfiles läuft alle aktiven Profile nacheinander durch. Fehler eines Profils
// werden geloggt und halten die übrigen nicht auf.
func (s *IngestService) RunActiveProfiles(ctx context.Context) ([]*RunReport, error) {
	profiles, err := s.Store.Profiles(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("fehler beim Abrufen der Profile: %w", err)
	}

	var reports []*RunReport
	for _, p := range profiles {
		log := s.Logger.With(zap.Uint("profile_id", p.ProfileID), zap.String("profile", p.Name))
		report, err := s.RunProfile(ctx, p.ProfileID)
		if err != nil {
			log.Error("Profil-Lauf fehlgeschlagen", zap.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *IngestService) run(ctx context.Context, plan runPlan) (*RunReport, error) {
	log := s.Logger.With(zap.String("source", string(plan.source)), zap.String("query", plan.query.Term))
	if plan.provider == nil {
		return nil, fmt.Errorf("%w: source %s is not configured", ErrInvalidRequest, plan.source)
	}

	// 1. Quelle abfragen; schlägt das fehl, entsteht kein Snapshot
	res, err := plan.provider.Search(ctx, plan.query)
	if err != nil {
		failedRunsCounter.WithLabelValues(string(plan.source)).Inc()
		log.Error("Quelle hat einen Fehler geliefert", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	// 2. Snapshot festlegen
	snapshotID, err := s.resolveSnapshot(ctx, plan.snapshotID, plan.addToLatest, plan.notes)
	if err != nil {
		failedRunsCounter.WithLabelValues(string(plan.source)).Inc()
		return nil, err
	}
	log = log.With(zap.String("snapshot_id", snapshotID))

	report := &RunReport{
		SnapshotID:  snapshotID,
		Source:      plan.source,
		Query:       plan.query.Term,
		Fetched:     res.Fetched,
		FilteredOut: res.FilteredOut,
		KeptUndated: res.KeptUndated,
	}
	if plan.query.Window != nil {
		report.Window = plan.query.Window.String()
		report.FilterReason = filterReason(plan.source, res, plan.query.Window)
	}

	// 3. Speichern
	report.Ingested, err = s.Store.Upsert(ctx, res.Records, snapshotID)
	if err != nil {
		failedRunsCounter.WithLabelValues(string(plan.source)).Inc()
		return nil, fmt.Errorf("fehler beim Speichern in Snapshot %s: %w", snapshotID, err)
	}

	// 4. Taggen
	report.Mentions, err = s.Tagger.Tag(ctx, snapshotID)
	if err != nil {
		failedRunsCounter.WithLabelValues(string(plan.source)).Inc()
		return nil, fmt.Errorf("fehler beim Taggen von Snapshot %s: %w", snapshotID, err)
	}

	// 5. Zusammenfassungen anstoßen, ohne den Lauf davon abhängig zu machen
	if report.Mentions > 0 {
		task := NewSummaryTask(snapshotID, s.summaryLimit())
		if err := s.Queue.Enqueue(ctx, task); err != nil {
			log.Warn("Zusammenfassungen konnten nicht angestoßen werden", zap.Error(err))
			report.Warnings = append(report.Warnings, "summary hand-off failed: "+err.Error())
		}
	}

	observeRun(report)
	log.Info("Lauf abgeschlossen",
		zap.Int("fetched", report.Fetched),
		zap.Int("filtered_out", report.FilteredOut),
		zap.Int("kept_undated", report.KeptUndated),
		zap.Int("ingested", report.Ingested),
		zap.Int("mentions", report.Mentions))
	return report, nil
}

// resolveSnapshot nimmt die explizite ID, sonst bei AddToLatest den neuesten Snapshot, sonst einen neuen.
func (s *IngestService) resolveSnapshot(ctx context.Context, explicit string, addToLatest bool, notes string) (string, error) {
	if explicit == "" && addToLatest {
		latest, ok, err := s.Store.LatestSnapshotID(ctx)
		if err != nil {
			return "", err
		}
		if ok {
			explicit = latest
		}
	}
	return s.Store.EnsureSnapshot(ctx, explicit, notes)
}

func (s *IngestService) pubMedWindowDays() int {
	if s.Config != nil && s.Config.PubMedWindowDays > 0 {
		return s.Config.PubMedWindowDays
	}
	return 30
}

func (s *IngestService) summaryLimit() int {
	if s.Config != nil && s.Config.SummaryLimit > 0 {
		return s.Config.SummaryLimit
	}
	return 100
}

func checkSnapshotChoice(snapshotID string, addToLatest bool) error {
	if snapshotID != "" && addToLatest {
		return fmt.Errorf("%w: snapshot_id and add_to_latest are mutually exclusive", ErrInvalidRequest)
	}
	return nil
}

// parseWindow liefert nil, wenn weder Start noch Ende angegeben sind.
func parseWindow(start, end string) (*dates.Window, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("%w: both start_date and end_date are required for a window", ErrInvalidRequest)
	}
	w, err := dates.ParseWindow(start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return &w, nil
}

func filterReason(source models.Source, res *providers.Result, w *dates.Window) string {
	basis := "epub date, else print date"
	if source == models.SourceCTGov {
		basis = "first-posted date, else start date"
	}
	return fmt.Sprintf("%d outside window %s by %s; %d kept with unparseable date",
		res.FilteredOut, w, basis, res.KeptUndated)
}
