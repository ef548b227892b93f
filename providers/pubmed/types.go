// Package pubmed enthält die Logik für die Interaktion mit den NCBI E-Utilities (esearch/efetch).
package pubmed

import (
	"encoding/xml"
	"strings"
)

// ESearchResponse repräsentiert die JSON-Antwort von ESearch für die ID-Suche.
type ESearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IdList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
}

// PubmedArticleSet repräsentiert das gesamte XML-Dokument von efetch.
type PubmedArticleSet struct {
	XMLName       xml.Name        `xml:"PubmedArticleSet"`
	PubmedArticle []PubmedArticle `xml:"PubmedArticle"`
}

// PubmedArticle repräsentiert einen einzelnen Artikel in der XML-Antwort.
type PubmedArticle struct {
	MedlineCitation struct {
		PMID    text     `xml:"PMID"`
		Article *Article `xml:"Article"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		History []HistoryDate `xml:"History>PubMedPubDate"`
	} `xml:"PubmedData"`
}

// Article ist der bibliografische Kern eines Eintrags.
type Article struct {
	Journal struct {
		PubDate struct {
			Year        text `xml:"Year"`
			Month       text `xml:"Month"`
			Day         text `xml:"Day"`
			MedlineDate text `xml:"MedlineDate"`
		} `xml:"JournalIssue>PubDate"`
	} `xml:"Journal"`
	Title    text   `xml:"ArticleTitle"`
	Abstract []text `xml:"Abstract>AbstractText"`
	Authors  []struct {
		AffiliationInfo []struct {
			Affiliation text `xml:"Affiliation"`
		} `xml:"AffiliationInfo"`
	} `xml:"AuthorList>Author"`
	PublicationTypes []text      `xml:"PublicationTypeList>PublicationType"`
	ArticleDates     []DateParts `xml:"ArticleDate"`
}

// DateParts sind die getrennten Datumsfelder, wie PubMed sie liefert.
type DateParts struct {
	Year  text `xml:"Year"`
	Month text `xml:"Month"`
	Day   text `xml:"Day"`
}

// HistoryDate ist ein Eintrag der Publikationshistorie (received, accepted, epub, ...).
type HistoryDate struct {
	PubStatus string `xml:"PubStatus,attr"`
	DateParts
}

// text sammelt den gesamten Textinhalt eines Elements inkl. verschachtelter Auszeichnungen
// wie <i> oder <sup>, die in Titeln und Abstracts vorkommen.
type text string

func (t *text) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.CharData:
			b.Write(v)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				*t = text(b.String())
				return nil
			}
			depth--
		}
	}
}

func (t text) String() string {
	return string(t)
}
