package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"competitor-watch/config"
	"competitor-watch/dates"
	"competitor-watch/providers"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBaseURL = "https://eutils.test/entrez/eutils"

const sampleArticleSet = `<?xml version="1.0" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2024//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_240101.dtd">
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation Status="MEDLINE" Owner="NLM">
      <PMID Version="1">38000001</PMID>
      <Article PubModel="Print-Electronic">
        <Journal>
          <JournalIssue CitedMedium="Internet">
            <PubDate><Year>2026</Year><Month>Feb</Month></PubDate>
          </JournalIssue>
        </Journal>
        <ArticleTitle>Efficacy of <i>risankizumab</i>   in
          plaque psoriasis</ArticleTitle>
        <Abstract>
          <AbstractText Label="BACKGROUND">Psoriasis is common.</AbstractText>
          <AbstractText Label="EMPTY">   </AbstractText>
          <AbstractText Label="RESULTS">PASI 90 was reached by <b>70%</b>.</AbstractText>
        </Abstract>
        <AuthorList CompleteYN="Y">
          <Author ValidYN="Y">
            <LastName>Doe</LastName>
            <AffiliationInfo><Affiliation>AbbVie Inc., North Chicago, IL, USA.</Affiliation></AffiliationInfo>
            <AffiliationInfo><Affiliation>Dept. of Dermatology, Example University.</Affiliation></AffiliationInfo>
          </Author>
          <Author ValidYN="Y">
            <LastName>Roe</LastName>
            <AffiliationInfo><Affiliation>Janssen Biotech, a Johnson &amp; Johnson company</Affiliation></AffiliationInfo>
          </Author>
        </AuthorList>
        <PublicationTypeList>
          <PublicationType UI="D016428">Journal Article</PublicationType>
          <PublicationType UI="D016449">Randomized Controlled Trial</PublicationType>
        </PublicationTypeList>
        <ArticleDate DateType="Electronic"><Year>2026</Year><Month>01</Month><Day>20</Day></ArticleDate>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <History>
        <PubMedPubDate PubStatus="received"><Year>2025</Year><Month>10</Month><Day>1</Day></PubMedPubDate>
        <PubMedPubDate PubStatus="epub"><Year>2026</Year><Month>1</Month><Day>18</Day></PubMedPubDate>
        <PubMedPubDate PubStatus="pubmed"><Year>2026</Year><Month>1</Month><Day>19</Day></PubMedPubDate>
      </History>
    </PubmedData>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <Article><ArticleTitle>No identifier</ArticleTitle></Article>
    </MedlineCitation>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">38000003</PMID>
    </MedlineCitation>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">38000004</PMID>
      <Article>
        <Journal><JournalIssue><PubDate><MedlineDate>2025 Dec-2026 Jan</MedlineDate></PubDate></JournalIssue></Journal>
        <ArticleTitle>Medline dated</ArticleTitle>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func testConfig() *config.Config {
	return &config.Config{
		PubMedBaseURL:    testBaseURL,
		PubMedTool:       "competitor-watch",
		PubMedRetMax:     200,
		PubMedBatchSize:  100,
		PubMedBatchDelay: time.Millisecond,
		PubMedWindowDays: 30,
		HTTPTimeout:      5 * time.Second,
	}
}

func newTestFetcher(t *testing.T, cfg *config.Config) *Fetcher {
	t.Helper()
	f := NewFetcher(cfg, zap.NewNop())
	httpmock.ActivateNonDefault(f.HTTPClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return f
}

// articleXML baut einen minimalen Artikel mit optionalem epub- und Druckdatum.
func articleXML(pmid, pubDate, epubDate, affiliation string) string {
	var pub, hist string
	if pubDate != "" {
		p := dates.Parse(pubDate)
		pub = fmt.Sprintf("<PubDate><Year>%04d</Year><Month>%02d</Month><Day>%02d</Day></PubDate>", p.Year, p.Month, p.Day)
	}
	if epubDate != "" {
		e := dates.Parse(epubDate)
		hist = fmt.Sprintf(`<History><PubMedPubDate PubStatus="epub"><Year>%04d</Year><Month>%d</Month><Day>%d</Day></PubMedPubDate></History>`, e.Year, e.Month, e.Day)
	}
	return fmt.Sprintf(`<PubmedArticle><MedlineCitation><PMID>%s</PMID><Article>
<Journal><JournalIssue>%s</JournalIssue></Journal>
<ArticleTitle>Paper %s</ArticleTitle>
<AuthorList><Author><AffiliationInfo><Affiliation>%s</Affiliation></AffiliationInfo></Author></AuthorList>
</Article></MedlineCitation><PubmedData>%s</PubmedData></PubmedArticle>`, pmid, pub, pmid, affiliation, hist)
}

func searchQuery(term string, w *dates.Window, limit int) providers.Query {
	return providers.Query{Term: term, Window: w, MaxResults: limit}
}

func articleSet(articles ...string) string {
	return "<PubmedArticleSet>" + strings.Join(articles, "\n") + "</PubmedArticleSet>"
}

func esearchJSON(ids ...string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + id + `"`
	}
	return fmt.Sprintf(`{"header":{"type":"esearch"},"esearchresult":{"count":"%d","retmax":"%d","idlist":[%s]}}`,
		len(ids), len(ids), strings.Join(quoted, ","))
}

func TestParseArticleSet(t *testing.T) {
	records, err := ParseArticleSet([]byte(sampleArticleSet))
	require.NoError(t, err)
	require.Len(t, records, 2, "records without PMID or Article are dropped")

	rec := records[0]
	assert.Equal(t, "38000001", rec.NativeID)
	assert.Equal(t, "PMID:38000001", rec.DocID())
	assert.Equal(t, "Efficacy of risankizumab in plaque psoriasis", rec.Title)
	assert.Equal(t, "Psoriasis is common.\nPASI 90 was reached by 70%.", rec.Abstract)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/38000001/", rec.URL)
	assert.Equal(t, "2026-01-20", rec.PublishedDate.String(), "ArticleDate wins over the journal issue date")
	assert.Equal(t, "2026-01-18", rec.EpubDate.String())
	assert.Equal(t, "2026-01-18", rec.EffectiveDate().String())
	assert.Equal(t, []string{"Journal Article", "Randomized Controlled Trial"}, rec.PublicationTypes)
	assert.Equal(t, "Journal Article", rec.PublicationType())
	assert.Equal(t, []string{
		"AbbVie Inc., North Chicago, IL, USA.",
		"Dept. of Dermatology, Example University.",
		"Janssen Biotech, a Johnson & Johnson company",
	}, rec.Affiliations)

	medline := records[1]
	assert.Equal(t, "38000004", medline.NativeID)
	assert.Equal(t, "2025", medline.PublishedDate.String())
	assert.False(t, medline.EpubDate.Known())
	assert.Empty(t, medline.Abstract)
	assert.Empty(t, medline.Affiliations)
}

func TestParseArticleSet_JournalIssueFallback(t *testing.T) {
	body := `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>1</PMID><Article>
<Journal><JournalIssue><PubDate><Year>2025</Year><Month>Sep</Month><Day>9</Day></PubDate></JournalIssue></Journal>
<ArticleTitle>T</ArticleTitle></Article></MedlineCitation></PubmedArticle>
<PubmedArticle><MedlineCitation><PMID>2</PMID><Article>
<Journal><JournalIssue><PubDate><Year>2025</Year><Season>Spring</Season></PubDate></JournalIssue></Journal>
<ArticleTitle>T</ArticleTitle></Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`

	records, err := ParseArticleSet([]byte(body))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2025-09-09", records[0].PublishedDate.String())
	assert.Equal(t, "2025", records[1].PublishedDate.String())
}

func TestParseArticleSet_InvalidXML(t *testing.T) {
	_, err := ParseArticleSet([]byte(`<PubmedArticleSet><PubmedArticle>`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid XML")
}

func TestSearch_WindowReapplication(t *testing.T) {
	f := newTestFetcher(t, testConfig())
	window, err := dates.ParseWindow("2026/01/01", "2026/01/31")
	require.NoError(t, err)

	httpmock.RegisterResponder("GET", testBaseURL+"/esearch.fcgi",
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "psoriasis AND Risankizumab", q.Get("term"))
			assert.Equal(t, "2026/01/01", q.Get("mindate"))
			assert.Equal(t, "2026/01/31", q.Get("maxdate"))
			assert.Equal(t, "pdat", q.Get("datetype"))
			assert.Equal(t, "50", q.Get("retmax"))
			return httpmock.NewStringResponse(http.StatusOK, esearchJSON("1", "2", "3", "4", "5", "6")), nil
		})
	httpmock.RegisterResponder("GET", testBaseURL+"/efetch.fcgi",
		httpmock.NewStringResponder(http.StatusOK, articleSet(
			articleXML("1", "2026-01-15", "2025-12-20", "A"), // epub vor dem Fenster
			articleXML("2", "2026-02-10", "2026-01-05", "B"), // epub im Fenster, Druck danach
			articleXML("3", "", "", "C"),                     // kein Datum
			articleXML("4", "2026-01-31", "", "D"),           // letzter Tag
			articleXML("5", "2026-02-01", "", "E"),           // einen Tag zu spät
			articleXML("6", "2026-01-01", "", "F"),           // erster Tag
		)))

	res, err := f.Search(context.Background(), searchQuery("psoriasis AND Risankizumab", &window, 50))
	require.NoError(t, err)

	assert.Equal(t, 6, res.Fetched)
	assert.Equal(t, 2, res.FilteredOut)
	assert.Equal(t, 1, res.KeptUndated)

	var ids []string
	for _, r := range res.Records {
		ids = append(ids, r.NativeID)
	}
	assert.Equal(t, []string{"2", "3", "4", "6"}, ids)
}

func TestSearch_DefaultWindow(t *testing.T) {
	f := newTestFetcher(t, testConfig())
	f.Now = func() time.Time { return time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC) }

	httpmock.RegisterResponder("GET", testBaseURL+"/esearch.fcgi",
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "2026/01/17", q.Get("mindate"))
			assert.Equal(t, "2026/02/16", q.Get("maxdate"))
			assert.Equal(t, "200", q.Get("retmax"))
			assert.Equal(t, "competitor-watch", q.Get("tool"))
			return httpmock.NewStringResponse(http.StatusOK, esearchJSON()), nil
		})

	res, err := f.Search(context.Background(), searchQuery("guselkumab", nil, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Fetched)
	assert.Empty(t, res.Records)
	assert.Equal(t, 0, httpmock.GetCallCountInfo()["GET "+testBaseURL+"/efetch.fcgi"])
}

func TestSearchIDs_CapsResults(t *testing.T) {
	f := newTestFetcher(t, testConfig())
	httpmock.RegisterResponder("GET", testBaseURL+"/esearch.fcgi",
		httpmock.NewStringResponder(http.StatusOK, esearchJSON("9", "8", "7", "6")))

	ids, err := f.SearchIDs(context.Background(), "x", dates.LastDays(time.Now(), 30), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"9", "8"}, ids)
}

func TestFetchRecords_Chunks(t *testing.T) {
	cfg := testConfig()
	cfg.PubMedBatchSize = 2
	f := newTestFetcher(t, cfg)

	var batches []string
	httpmock.RegisterResponder("GET", testBaseURL+"/efetch.fcgi",
		func(req *http.Request) (*http.Response, error) {
			ids := req.URL.Query().Get("id")
			batches = append(batches, ids)
			var articles []string
			for _, id := range strings.Split(ids, ",") {
				articles = append(articles, articleXML(id, "2026-01-10", "", "Org "+id))
			}
			return httpmock.NewStringResponse(http.StatusOK, articleSet(articles...)), nil
		})

	records, err := f.FetchRecords(context.Background(), []string{"1", "2", "3", "4", "5"})
	require.NoError(t, err)
	assert.Len(t, records, 5)
	assert.Equal(t, []string{"1,2", "3,4", "5"}, batches)
}

func TestSearch_UpstreamError(t *testing.T) {
	f := newTestFetcher(t, testConfig())
	httpmock.RegisterResponder("GET", testBaseURL+"/esearch.fcgi",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	res, err := f.Search(context.Background(), searchQuery("x", nil, 0))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSearch_EfetchError(t *testing.T) {
	f := newTestFetcher(t, testConfig())
	httpmock.RegisterResponder("GET", testBaseURL+"/esearch.fcgi",
		httpmock.NewStringResponder(http.StatusOK, esearchJSON("1")))
	httpmock.RegisterResponder("GET", testBaseURL+"/efetch.fcgi",
		httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"))

	_, err := f.Search(context.Background(), searchQuery("x", nil, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
