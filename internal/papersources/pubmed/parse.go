package pubmed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"

	"github.com/helixir/pubmed-explorer/internal/domain"
)

// parseResult is the outcome of parsing an efetch document.
type parseResult struct {
	Articles []domain.Article
	// Skipped counts PubmedArticle elements that could not be turned into a record.
	Skipped int
	// Err is set when the document ended inside a record. Articles parsed
	// before that point are still returned.
	Err error
}

var (
	articleOpen  = []byte("<PubmedArticle")
	articleClose = []byte("</PubmedArticle>")
)

// errTruncatedRecord reports a PubmedArticle element that is never closed.
var errTruncatedRecord = errors.New("efetch document ends inside a PubmedArticle")

// parseArticleSet splits an efetch document into PubmedArticle spans and
// decodes each span with its own decoder, so a syntax error in one record
// cannot take its siblings with it.
func parseArticleSet(doc []byte) parseResult {
	var res parseResult
	for {
		span, rest, ok := nextArticleSpan(doc)
		if !ok {
			return res
		}
		if span == nil {
			res.Skipped++
			res.Err = errTruncatedRecord
			return res
		}
		doc = rest

		article, err := decodeArticle(span)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Articles = append(res.Articles, article)
	}
}

// nextArticleSpan finds the next <PubmedArticle>...</PubmedArticle> span.
// It returns ok=false when no record starts in doc, and a nil span when a
// record starts but is never closed.
func nextArticleSpan(doc []byte) (span, rest []byte, ok bool) {
	for {
		i := bytes.Index(doc, articleOpen)
		if i < 0 {
			return nil, nil, false
		}
		after := doc[i+len(articleOpen):]
		// Skip <PubmedArticleSet> and other longer element names.
		if len(after) > 0 && !isTagNameEnd(after[0]) {
			doc = after
			continue
		}
		j := bytes.Index(after, articleClose)
		if j < 0 {
			return nil, nil, true
		}
		end := i + len(articleOpen) + j + len(articleClose)
		return doc[i:end], doc[end:], true
	}
}

func isTagNameEnd(b byte) bool {
	switch b {
	case '>', '/', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// decodeArticle decodes a single PubmedArticle span.
func decodeArticle(span []byte) (domain.Article, error) {
	dec := xml.NewDecoder(bytes.NewReader(span))
	dec.Entity = xml.HTMLEntity

	var pa PubmedArticle
	if err := dec.Decode(&pa); err != nil {
		return domain.Article{}, err
	}
	article, ok := toArticle(pa)
	if !ok {
		return domain.Article{}, errMissingPMID
	}
	return article, nil
}

var errMissingPMID = errors.New("pubmed record has no PMID")

// toArticle maps a decoded record to the domain model. Records without a
// PMID are rejected.
func toArticle(pa PubmedArticle) (domain.Article, bool) {
	citation := pa.MedlineCitation
	id := citation.PMID.String()
	if id == "" {
		return domain.Article{}, false
	}

	art := citation.Article
	return domain.Article{
		ID:       id,
		Title:    art.ArticleTitle.String(),
		Authors:  formatAuthors(art.AuthorList),
		Venue:    venue(art.Journal),
		Year:     year(art.Journal.JournalIssue.PubDate),
		Abstract: renderAbstract(art.Abstract),
		URL:      domain.ArticleURL(id),
	}, true
}

// formatAuthors renders the first domain.MaxAuthors authors as "LastName Initials",
// using the collective name for group authors.
func formatAuthors(list *AuthorList) []string {
	authors := make([]string, 0, domain.MaxAuthors)
	if list == nil {
		return authors
	}
	for _, a := range list.Authors {
		if len(authors) == domain.MaxAuthors {
			break
		}
		if a.ValidYN == "N" {
			continue
		}
		name := strings.TrimSpace(a.LastName.String() + " " + a.Initials.String())
		if name == "" {
			name = a.CollectiveName.String()
		}
		if name == "" {
			continue
		}
		authors = append(authors, name)
	}
	return authors
}

func venue(j Journal) string {
	if title := j.Title.String(); title != "" {
		return title
	}
	return j.ISOAbbreviation.String()
}

func year(d PubDate) string {
	if y := d.Year.String(); y != "" {
		return y
	}
	if md := d.MedlineDate.String(); md != "" {
		return md
	}
	return domain.YearUnknown
}

// renderAbstract joins abstract segments in document order with a blank
// line. Labelled segments are rendered as "**LABEL**: text".
func renderAbstract(abstract *Abstract) string {
	if abstract == nil {
		return ""
	}
	parts := make([]string, 0, len(abstract.AbstractTexts))
	for _, seg := range abstract.AbstractTexts {
		if seg.Label != "" {
			parts = append(parts, "**"+seg.Label+"**: "+seg.Text)
			continue
		}
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}
