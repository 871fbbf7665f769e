// Package pubmed provides a client for the NCBI PubMed E-utilities API.
//
// A search runs in two network phases: ESearch (JSON) resolves a query to
// PMIDs, then a single EFetch (XML) retrieves the records, which are parsed
// into domain.Article values.
//
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package pubmed

import (
	"encoding/xml"
	"strings"
)

// eSearchResponse is the JSON body of esearch.fcgi with retmode=json.
type eSearchResponse struct {
	Result eSearchResult `json:"esearchresult"`
}

// eSearchResult carries the id list. Counts arrive as strings.
type eSearchResult struct {
	Count     string          `json:"count"`
	RetMax    string          `json:"retmax"`
	IDList    []string        `json:"idlist"`
	ErrorList *eSearchErrors  `json:"errorlist,omitempty"`
	Warnings  *eSearchWarning `json:"warninglist,omitempty"`
	Error     string          `json:"ERROR,omitempty"`
}

type eSearchErrors struct {
	PhrasesNotFound []string `json:"phrasesnotfound"`
	FieldsNotFound  []string `json:"fieldsnotfound"`
}

type eSearchWarning struct {
	OutputMessages []string `json:"outputmessages"`
}

// PubmedArticle represents a single article in an efetch response. Only the
// elements that feed domain.Article are decoded.
type PubmedArticle struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
}

// MedlineCitation contains the core bibliographic information.
type MedlineCitation struct {
	PMID    textContent `xml:"PMID"`
	Article Article     `xml:"Article"`
}

// Article contains the article metadata.
type Article struct {
	Journal      Journal     `xml:"Journal"`
	ArticleTitle textContent `xml:"ArticleTitle"`
	Abstract     *Abstract   `xml:"Abstract"`
	AuthorList   *AuthorList `xml:"AuthorList"`
}

// Journal contains journal information.
type Journal struct {
	JournalIssue    JournalIssue `xml:"JournalIssue"`
	Title           textContent  `xml:"Title"`
	ISOAbbreviation textContent  `xml:"ISOAbbreviation"`
}

// JournalIssue holds the publication date.
type JournalIssue struct {
	PubDate PubDate `xml:"PubDate"`
}

// PubDate is either a Year/Month/Day triple or a free-form MedlineDate.
type PubDate struct {
	Year        textContent `xml:"Year"`
	MedlineDate textContent `xml:"MedlineDate"`
}

// Abstract contains the article abstract, which may have multiple sections.
type Abstract struct {
	AbstractTexts []AbstractText `xml:"AbstractText"`
}

// AbstractText is one abstract segment. Structured abstracts label their
// segments (BACKGROUND, METHODS, RESULTS, ...).
type AbstractText struct {
	Label string
	Text  string
}

// UnmarshalXML reads the Label attribute and the full text of the segment,
// including text nested in inline markup such as <i> or <sup>.
func (a *AbstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = strings.TrimSpace(attr.Value)
		}
	}
	var text textContent
	if err := text.UnmarshalXML(d, start); err != nil {
		return err
	}
	a.Text = text.String()
	return nil
}

// AuthorList contains the list of authors.
type AuthorList struct {
	Authors []Author `xml:"Author"`
}

// Author is a personal or collective author.
type Author struct {
	ValidYN        string      `xml:"ValidYN,attr"`
	LastName       textContent `xml:"LastName"`
	Initials       textContent `xml:"Initials"`
	CollectiveName textContent `xml:"CollectiveName"`
}

// textContent is the concatenated character data of an element and all of
// its descendants, trimmed of surrounding whitespace.
type textContent string

// UnmarshalXML implements xml.Unmarshaler.
func (t *textContent) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
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
				*t = textContent(strings.TrimSpace(b.String()))
				return nil
			}
			depth--
		}
	}
}

// String returns the text as a plain string.
func (t textContent) String() string {
	return string(t)
}
