package ctgov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"competitor-watch/config"
	"competitor-watch/dates"
	"competitor-watch/models"
	"competitor-watch/providers"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

const (
	// Zusammen unter dieser Länge (in Zeichen) wird die ausführliche Beschreibung angehängt.
	combinedAbstractLimit = 12000
	briefSummaryLimit     = 8000
)

// Fetcher kapselt die Abfragelogik gegen ClinicalTrials.gov.
type Fetcher struct {
	Config     *config.Config
	Logger     *zap.Logger
	HTTPClient *http.Client

	limiter *rate.Limiter
}

var _ providers.Provider = (*Fetcher)(nil)

// NewFetcher erstellt einen neuen ClinicalTrials.gov-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	limit := rate.Inf
	if cfg.CTGovPageDelay > 0 {
		limit = rate.Every(cfg.CTGovPageDelay)
	}
	return &Fetcher{
		Config:     cfg,
		Logger:     logger,
		HTTPClient: providers.NewHTTPClient(cfg.HTTPTimeout),
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (f *Fetcher) Name() string {
	return string(models.SourceCTGov)
}

// Search blättert durch die Ergebnisseiten, bis kein Token mehr kommt oder MaxResults
// geparste Kandidaten erreicht sind. Das Zeitfenster wird danach angewendet, auch beim
// vorzeitigen Abbruch. Die Obergrenze zählt also Kandidaten, nicht das Endergebnis.
func (f *Fetcher) Search(ctx context.Context, q providers.Query) (*providers.Result, error) {
	condition := strings.TrimSpace(q.Term)
	if condition == "" {
		return nil, errors.New("ctgov: condition is required")
	}
	maxStudies := q.MaxResults
	if maxStudies <= 0 {
		maxStudies = f.Config.CTGovMaxStudies
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = f.Config.CTGovPageSize
	}

	log := f.Logger.With(zap.String("condition", condition), zap.String("intervention", q.Intervention))

	var (
		records   []*providers.Record
		pageToken string
		pages     int
		capped    bool
	)
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := f.FetchPage(ctx, condition, q.Intervention, pageSize, pageToken)
		if err != nil {
			return nil, err
		}
		pages++

		for i := range page.Studies {
			if rec, ok := ParseStudy(&page.Studies[i]); ok {
				records = append(records, rec)
			}
			if maxStudies > 0 && len(records) >= maxStudies {
				capped = true
				break
			}
		}
		if capped || page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	kept, dropped, undated := providers.FilterWindow(records, q.Window)
	fields := []zap.Field{
		zap.Int("pages", pages),
		zap.Int("parsed", len(records)),
		zap.Bool("capped", capped),
		zap.Int("outside_window", dropped),
		zap.Int("kept_undated", undated),
	}
	if q.Window != nil {
		fields = append(fields, zap.String("window", q.Window.String()))
	}
	log.Info("ClinicalTrials.gov-Suche abgeschlossen", fields...)

	return &providers.Result{
		Records:     kept,
		Fetched:     len(records),
		FilteredOut: dropped,
		KeptUndated: undated,
	}, nil
}

// FetchPage holt eine einzelne Ergebnisseite. Die Intervention geht über query.term,
// weil die API einen eigenen Interventionsfilter für diese Abfrage ablehnt.
func (f *Fetcher) FetchPage(ctx context.Context, condition, intervention string, pageSize int, pageToken string) (*StudiesResponse, error) {
	params := url.Values{}
	params.Set("query.cond", condition)
	if intervention = strings.TrimSpace(intervention); intervention != "" {
		params.Set("query.term", intervention)
	}
	params.Set("pageSize", strconv.Itoa(pageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Config.CTGovBaseURL+"/studies?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ctgov: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ctgov: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		f.Logger.Error("ClinicalTrials.gov hat einen Fehlerstatus geliefert",
			zap.Int("status", resp.StatusCode),
			zap.String("page_token", pageToken))
		return nil, fmt.Errorf("ctgov: failed: status %d", resp.StatusCode)
	}

	var page StudiesResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("ctgov: invalid JSON response: %w", err)
	}
	return &page, nil
}

// ParseStudy bildet eine Studie ab. Ohne NCT-ID gibt es keinen Datensatz.
func ParseStudy(s *Study) (*providers.Record, bool) {
	p := &s.ProtocolSection
	nctID := strings.TrimSpace(p.IdentificationModule.NCTID)
	if nctID == "" {
		return nil, false
	}

	title := p.IdentificationModule.OfficialTitle
	if strings.TrimSpace(title) == "" {
		title = p.IdentificationModule.BriefTitle
	}

	rec := &providers.Record{
		Source:         models.SourceCTGov,
		NativeID:       nctID,
		Title:          providers.CleanText(title),
		Abstract:       buildAbstract(p.DescriptionModule.BriefSummary, p.DescriptionModule.DetailedDescription),
		URL:            "https://clinicaltrials.gov/study/" + nctID,
		StartDate:      dates.Parse(p.StatusModule.StartDateStruct.value()),
		CompletionDate: dates.Parse(p.StatusModule.CompletionDateStruct.value()),
		FirstPosted:    dates.Parse(p.StatusModule.StudyFirstPostDateStruct.value()),
		LastUpdated:    dates.Parse(p.StatusModule.LastUpdatePostDateStruct.value()),
		Phases:         p.DesignModule.Phases,
		Conditions:     p.ConditionsModule.Conditions,
	}

	rec.PublishedDate = rec.FirstPosted
	if !rec.PublishedDate.Known() {
		rec.PublishedDate = rec.StartDate
	}

	if lead := p.SponsorCollaboratorsModule.LeadSponsor; lead != nil {
		rec.LeadSponsor = strings.TrimSpace(lead.Name)
	}
	for _, c := range p.SponsorCollaboratorsModule.Collaborators {
		if name := strings.TrimSpace(c.Name); name != "" {
			rec.Collaborators = append(rec.Collaborators, name)
		}
	}
	rec.Affiliations = sponsorAffiliations(rec.LeadSponsor, rec.Collaborators)
	return rec, true
}

func buildAbstract(brief, detailed string) string {
	brief = norm.NFC.String(strings.TrimSpace(brief))
	detailed = norm.NFC.String(strings.TrimSpace(detailed))

	if detailed != "" && utf8.RuneCountInString(brief)+utf8.RuneCountInString(detailed) < combinedAbstractLimit {
		if brief == "" {
			return detailed
		}
		return brief + "\n\n" + detailed
	}
	if utf8.RuneCountInString(brief) > briefSummaryLimit {
		return string([]rune(brief)[:briefSummaryLimit]) + "…"
	}
	return brief
}

// sponsorAffiliations liefert Sponsor und Kollaborateure in Reihenfolge, exakt dedupliziert.
func sponsorAffiliations(lead string, collaborators []string) []string {
	seen := make(map[string]struct{}, len(collaborators)+1)
	var out []string
	for _, name := range append([]string{lead}, collaborators...) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
