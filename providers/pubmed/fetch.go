package pubmed

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"competitor-watch/config"
	"competitor-watch/dates"
	"competitor-watch/models"
	"competitor-watch/providers"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Fetcher ist eine Struktur, die die Logik zur Interaktion mit PubMed kapselt.
type Fetcher struct {
	Config     *config.Config
	Logger     *zap.Logger
	HTTPClient *http.Client
	Now        func() time.Time

	limiter *rate.Limiter
}

var _ providers.Provider = (*Fetcher)(nil)

// NewFetcher erstellt eine neue Instanz des PubMed-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	limit := rate.Inf
	if cfg.PubMedBatchDelay > 0 {
		limit = rate.Every(cfg.PubMedBatchDelay)
	}
	return &Fetcher{
		Config:     cfg,
		Logger:     logger,
		HTTPClient: providers.NewHTTPClient(cfg.HTTPTimeout),
		Now:        time.Now,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return string(models.SourcePubMed)
}

// Search führt eine vollständige Suche durch: IDs im Fenster holen, Details in Batches laden,
// danach das Fenster erneut auf das Datum der Erstveröffentlichung (epub vor print) anwenden.
func (f *Fetcher) Search(ctx context.Context, q providers.Query) (*providers.Result, error) {
	window := f.resolveWindow(q.Window)
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = f.Config.PubMedRetMax
	}

	ids, err := f.SearchIDs(ctx, q.Term, window, maxResults)
	if err != nil {
		return nil, fmt.Errorf("fehler bei der PubMed ID-Suche: %w", err)
	}

	records, err := f.FetchRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fehler beim Laden der PubMed-Datensätze: %w", err)
	}

	kept, dropped, undated := providers.FilterWindow(records, &window)
	f.Logger.Info("PubMed-Suche abgeschlossen",
		zap.String("term", q.Term),
		zap.String("window", window.String()),
		zap.Int("ids", len(ids)),
		zap.Int("parsed", len(records)),
		zap.Int("outside_window", dropped),
		zap.Int("kept_undated", undated))

	return &providers.Result{
		Records:     kept,
		Fetched:     len(records),
		FilteredOut: dropped,
		KeptUndated: undated,
	}, nil
}

// resolveWindow setzt das Standardfenster (letzte N Tage bis heute), wenn keins übergeben wurde.
func (f *Fetcher) resolveWindow(w *dates.Window) dates.Window {
	if w != nil {
		return *w
	}
	days := f.Config.PubMedWindowDays
	if days <= 0 {
		days = 30
	}
	return dates.LastDays(f.Now(), days)
}

// SearchIDs führt eine ESearch-Abfrage im Publikationsfenster durch und gibt höchstens maxResults PMIDs zurück.
func (f *Fetcher) SearchIDs(ctx context.Context, term string, window dates.Window, maxResults int) ([]string, error) {
	log := f.Logger.With(zap.String("term", term))
	searchURL := f.buildEsearchURL(term, window, maxResults)
	log.Debug("Rufe ESearch-URL auf", zap.String("url", searchURL))

	body, err := f.get(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}

	var esearchResp ESearchResponse
	if err := json.Unmarshal(body, &esearchResp); err != nil {
		return nil, fmt.Errorf("esearch: invalid JSON response: %w", err)
	}
	if esearchResp.ESearchResult.Error != "" {
		return nil, fmt.Errorf("esearch: %s", esearchResp.ESearchResult.Error)
	}

	ids := esearchResp.ESearchResult.IdList
	if maxResults > 0 && len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	log.Debug("Erfolgreich IDs von ESearch erhalten", zap.Int("count", len(ids)))
	return ids, nil
}

// FetchXML holt die vollständigen Datensätze eines Batches in einem efetch-Aufruf.
func (f *Fetcher) FetchXML(ctx context.Context, ids []string) ([]byte, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")
	f.addIdentity(params)

	body, err := f.get(ctx, f.Config.PubMedBaseURL+"/efetch.fcgi?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}
	return body, nil
}

// FetchRecords teilt die IDs in Batches und wartet zwischen den Aufrufen die Höflichkeitspause ab.
func (f *Fetcher) FetchRecords(ctx context.Context, ids []string) ([]*providers.Record, error) {
	batchSize := f.Config.PubMedBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var records []*providers.Record
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := f.FetchXML(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		parsed, err := ParseArticleSet(body)
		if err != nil {
			return nil, err
		}
		f.Logger.Debug("Batch geparst",
			zap.Int("batch_start", start),
			zap.Int("requested", end-start),
			zap.Int("parsed", len(parsed)))
		records = append(records, parsed...)
	}
	return records, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.Logger.Error("E-Utilities haben nicht-2xx-Status zurückgegeben",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 512)))
		return nil, fmt.Errorf("failed: status %d", resp.StatusCode)
	}
	return body, nil
}

// buildEsearchURL baut die URL für eine ESearch-Anfrage.
func (f *Fetcher) buildEsearchURL(term string, window dates.Window, retmax int) string {
	minDate, maxDate := window.PubMedBounds()
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(retmax))
	params.Set("sort", "pub_date")
	params.Set("datetype", "pdat")
	params.Set("mindate", minDate)
	params.Set("maxdate", maxDate)
	f.addIdentity(params)
	return f.Config.PubMedBaseURL + "/esearch.fcgi?" + params.Encode()
}

func (f *Fetcher) addIdentity(params url.Values) {
	if f.Config.PubMedAPIKey != "" {
		params.Set("api_key", f.Config.PubMedAPIKey)
	}
	if f.Config.PubMedTool != "" {
		params.Set("tool", f.Config.PubMedTool)
	}
	if f.Config.PubMedEmail != "" {
		params.Set("email", f.Config.PubMedEmail)
	}
}

// ParseArticleSet wandelt eine efetch-Antwort in kanonische Datensätze um.
// Einträge ohne PMID oder ohne <Article> werden übersprungen.
func ParseArticleSet(body []byte) ([]*providers.Record, error) {
	var articleSet PubmedArticleSet
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&articleSet); err != nil {
		return nil, fmt.Errorf("efetch: invalid XML: %w", err)
	}

	records := make([]*providers.Record, 0, len(articleSet.PubmedArticle))
	for i := range articleSet.PubmedArticle {
		if rec := mapArticleToRecord(&articleSet.PubmedArticle[i]); rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// mapArticleToRecord wandelt ein XML-Article-Objekt in unseren kanonischen Datensatz um.
func mapArticleToRecord(pa *PubmedArticle) *providers.Record {
	pmid := providers.CleanText(pa.MedlineCitation.PMID.String())
	article := pa.MedlineCitation.Article
	if pmid == "" || article == nil {
		return nil
	}

	rec := &providers.Record{
		Source:        models.SourcePubMed,
		NativeID:      pmid,
		Title:         providers.CleanText(article.Title.String()),
		URL:           fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid),
		PublishedDate: parsePubDate(article),
		EpubDate:      parseEpubDate(pa.PubmedData.History),
	}

	var parts []string
	for _, ab := range article.Abstract {
		if s := providers.CleanText(ab.String()); s != "" {
			parts = append(parts, s)
		}
	}
	rec.Abstract = strings.TrimSpace(strings.Join(parts, "\n"))

	for _, pt := range article.PublicationTypes {
		if s := providers.CleanText(pt.String()); s != "" {
			rec.PublicationTypes = append(rec.PublicationTypes, s)
		}
	}

	for _, author := range article.Authors {
		for _, info := range author.AffiliationInfo {
			if s := providers.CleanText(info.Affiliation.String()); s != "" {
				rec.Affiliations = append(rec.Affiliations, s)
			}
		}
	}
	return rec
}

// parsePubDate bevorzugt ArticleDate, dann JournalIssue/PubDate, dann das Jahr aus MedlineDate.
func parsePubDate(article *Article) dates.PartialDate {
	if len(article.ArticleDates) > 0 {
		if d := partsToDate(article.ArticleDates[0]); d.Known() {
			return d
		}
	}

	pd := article.Journal.PubDate
	if d := dates.FromParts(pd.Year.String(), pd.Month.String(), pd.Day.String()); d.Known() {
		return d
	}
	if medline := providers.CleanText(pd.MedlineDate.String()); medline != "" {
		return dates.YearToken(medline)
	}
	return dates.Unknown
}

// parseEpubDate nimmt den ersten Historieneintrag mit PubStatus="epub".
func parseEpubDate(history []HistoryDate) dates.PartialDate {
	for _, h := range history {
		if h.PubStatus != "epub" {
			continue
		}
		return partsToDate(h.DateParts)
	}
	return dates.Unknown
}

func partsToDate(p DateParts) dates.PartialDate {
	return dates.FromParts(
		providers.CleanText(p.Year.String()),
		providers.CleanText(p.Month.String()),
		providers.CleanText(p.Day.String()),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
