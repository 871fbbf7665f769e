// Package domain provides the domain model shared by the PubMed explorer:
// article records, provider identifiers, pipeline events, and the error taxonomy.
package domain

import (
	"fmt"
	"strings"
)

// YearUnknown is the year value used when PubMed gives neither a year nor a MedlineDate.
const YearUnknown = "N/A"

// MaxAuthors is the number of authors kept per article.
const MaxAuthors = 3

// ArticleURLPrefix is the public PubMed page prefix for an article.
const ArticleURLPrefix = "https://pubmed.ncbi.nlm.nih.gov/"

// Article is a normalized PubMed record.
//
// Records are values. Enrichment produces a new record through
// WithTranslatedTitle rather than mutating a shared one.
type Article struct {
	// ID is the PubMed identifier (PMID).
	ID string `json:"id"`
	// Title is the original article title, possibly empty.
	Title string `json:"title"`
	// TranslatedTitle is empty until title enrichment succeeds.
	TranslatedTitle string `json:"translated_title,omitempty"`
	// Authors holds at most MaxAuthors entries formatted "LastName Initials".
	Authors []string `json:"authors"`
	// Venue is the journal title or its ISO abbreviation.
	Venue string `json:"venue"`
	// Year is the publication year, a MedlineDate string, or YearUnknown.
	Year string `json:"year"`
	// Abstract is the rendered abstract, labelled segments as "**LABEL**: text".
	Abstract string `json:"abstract"`
	// URL links to the article page on PubMed.
	URL string `json:"url"`
}

// ArticleURL returns the PubMed page for a PMID.
func ArticleURL(id string) string {
	return fmt.Sprintf("%s%s/", ArticleURLPrefix, id)
}

// HasAbstract reports whether the article carries any abstract text.
func (a Article) HasAbstract() bool {
	return strings.TrimSpace(a.Abstract) != ""
}

// DisplayTitle returns the translated title when present, else the original.
func (a Article) DisplayTitle() string {
	if a.TranslatedTitle != "" {
		return a.TranslatedTitle
	}
	return a.Title
}

// WithTranslatedTitle returns a copy of the article carrying translated.
// A blank translation, or one identical to the original title, leaves the
// copy without a translated title.
func (a Article) WithTranslatedTitle(translated string) Article {
	out := a
	out.Authors = append([]string(nil), a.Authors...)
	translated = strings.TrimSpace(translated)
	if translated != "" && translated != a.Title {
		out.TranslatedTitle = translated
	}
	return out
}

// Titles returns the original titles of articles in order.
func Titles(articles []Article) []string {
	titles := make([]string, len(articles))
	for i, a := range articles {
		titles[i] = a.Title
	}
	return titles
}
