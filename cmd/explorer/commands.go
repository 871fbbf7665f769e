package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-explorer/internal/events"
	"github.com/helixir/pubmed-explorer/internal/pipeline"
)

var (
	searchCount  int
	searchAPIKey string
	searchJSON   bool
	searchTrace  bool
	explainJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search PubMed with a query in any language",
	Long: `search translates QUERY into English, runs it against PubMed, and prints
the results with titles translated into Russian.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		publisher := &events.MemoryPublisher{}
		a, err := buildApp(publisher)
		if err != nil {
			return err
		}
		defer a.Close()

		c := a.Coordinator()
		if !searchJSON {
			progress := newProgressPrinter(cmd.ErrOrStderr())
			defer c.Subscribe(progress.observe)()
		}

		final, err := c.Search(cmd.Context(), pipeline.Request{
			Query:     strings.Join(args, " "),
			Count:     searchCount,
			AccessKey: searchAPIKey,
		})
		if err != nil {
			return err
		}

		if searchJSON {
			if err := printJSON(cmd.OutOrStdout(), final); err != nil {
				return err
			}
		} else {
			printSearchResult(cmd.OutOrStdout(), final)
		}
		if searchTrace {
			printTrace(cmd.ErrOrStderr(), publisher.Events())
		}
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain PMID",
	Short: "Explain a PubMed article in plain language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(&events.MemoryPublisher{})
		if err != nil {
			return err
		}
		defer a.Close()

		article, summary, err := a.Coordinator().ExplainByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if explainJSON {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"pmid":    article.ID,
				"title":   article.Title,
				"summary": summary,
			})
		}
		printExplanation(cmd.OutOrStdout(), article, summary)
		return nil
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize QUERY",
	Short: "Compress a long question into PubMed search terms",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(&events.MemoryPublisher{})
		if err != nil {
			return err
		}
		defer a.Close()

		optimized, err := a.Assistant.OptimizeQuery(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), optimized)
		return nil
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the selection policy and which LLM providers are available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(&events.MemoryPublisher{})
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.Assistant.Providers(cmd.Context())
		if err != nil {
			return err
		}
		printProviders(cmd.OutOrStdout(), info)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchCount, "count", "n", 0, "number of articles (default from config)")
	searchCmd.Flags().StringVar(&searchAPIKey, "api-key", "", "NCBI API key for this search")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output the final state as JSON")
	searchCmd.Flags().BoolVar(&searchTrace, "trace", false, "print pipeline events to stderr")

	explainCmd.Flags().BoolVar(&explainJSON, "json", false, "output as JSON")
}
