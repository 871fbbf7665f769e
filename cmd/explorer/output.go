package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/helixir/pubmed-explorer/internal/assistant"
	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/pipeline"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// progressPrinter reports stage and phase changes of a running search.
type progressPrinter struct {
	w     io.Writer
	stage pipeline.Stage
	phase string
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) observe(s pipeline.State) {
	if s.Stage == p.stage && string(s.Phase) == p.phase {
		return
	}
	p.stage, p.phase = s.Stage, string(s.Phase)

	switch s.Stage {
	case pipeline.StageTranslating:
		faint.Fprintf(p.w, "translating query...\n")
	case pipeline.StageSearching:
		if s.Phase != "" {
			faint.Fprintf(p.w, "searching PubMed for %q (%s)\n", s.TranslatedQuery, s.Phase)
		}
	case pipeline.StageResults:
		faint.Fprintf(p.w, "found %d articles, translating titles...\n", len(s.Articles))
	}
}

func printSearchResult(w io.Writer, s pipeline.State) {
	bold.Fprintf(w, "Query: ")
	fmt.Fprintf(w, "%s", s.Query)
	if s.TranslatedQuery != "" && s.TranslatedQuery != s.Query {
		faint.Fprintf(w, " -> %s", s.TranslatedQuery)
	}
	fmt.Fprintln(w)

	if len(s.Articles) == 0 {
		yellow.Fprintln(w, "No articles found.")
		return
	}
	bold.Fprintf(w, "Showing %d of %d\n", len(s.Articles), s.TotalResults)
	fmt.Fprintln(w, strings.Repeat("-", 60))

	for i, a := range s.Articles {
		cyan.Fprintf(w, "[%s]", a.ID)
		fmt.Fprintf(w, " %s\n", a.DisplayTitle())
		if a.TranslatedTitle != "" {
			faint.Fprintf(w, "  %s\n", a.Title)
		}
		if meta := articleMeta(a); meta != "" {
			fmt.Fprintf(w, "  %s\n", meta)
		}
		green.Fprintf(w, "  %s\n", a.URL)
		if i < len(s.Articles)-1 {
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
}

func articleMeta(a domain.Article) string {
	var parts []string
	if len(a.Authors) > 0 {
		authors := a.Authors
		if len(authors) > 3 {
			authors = append(authors[:3:3], "et al.")
		}
		parts = append(parts, strings.Join(authors, ", "))
	}
	if a.Venue != "" {
		parts = append(parts, a.Venue)
	}
	if a.Year != "" {
		parts = append(parts, a.Year)
	}
	return strings.Join(parts, " · ")
}

func printExplanation(w io.Writer, a domain.Article, summary string) {
	cyan.Fprintf(w, "[%s]", a.ID)
	bold.Fprintf(w, " %s\n", a.Title)
	if meta := articleMeta(a); meta != "" {
		faint.Fprintf(w, "%s\n", meta)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, summary)
}

func printProviders(w io.Writer, info assistant.ProvidersInfo) {
	bold.Fprintf(w, "Policy: ")
	fmt.Fprintf(w, "%s (preferred: %s)\n", info.Policy, info.Preferred)
	for _, p := range info.Providers {
		marker := " "
		if p.Preferred {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-8s %-22s ", marker, p.ID, p.Model)
		if p.Available {
			green.Fprintln(w, "available")
		} else {
			yellow.Fprintln(w, "unavailable")
		}
	}
}

func printTrace(w io.Writer, evts []domain.Event) {
	for _, e := range evts {
		faint.Fprintf(w, "%s %s %s\n", e.CreatedAt.Format("15:04:05.000"), e.EventType, e.Payload)
	}
}

func printError(w io.Writer, err error) {
	red.Fprintf(w, "Error: %v\n", err)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
