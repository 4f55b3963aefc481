package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/eventsage/internal/formatter"
	"github.com/dshills/eventsage/internal/router"
	"github.com/dshills/eventsage/pkg/types"
)

var (
	askJSON     bool
	searchLimit int
	searchJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question about the events",
	Long: `Routes the question through the retrieval chain (exact name, count,
report, date range, person, mode, domain, hybrid, vector) and prints the
generated answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve matching events without an answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output answer as JSON")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(askCmd, searchCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)

	ans, err := svc.Ask(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return printJSON(cmd, map[string]any{
			"answer":      ans.Text,
			"strategy":    ans.Strategy,
			"count":       ans.Count,
			"provider":    ans.Provider,
			"events":      len(ans.Events),
			"duration_ms": ans.Duration.Milliseconds(),
		})
	}
	cmd.Println(ans.Text)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)

	res, err := svc.Search(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		events := res.Events
		if searchLimit > 0 && len(events) > searchLimit {
			events = events[:searchLimit]
		}
		return printJSON(cmd, map[string]any{
			"strategy": res.Strategy,
			"intent":   res.Classification.Intent,
			"count":    res.Count,
			"events":   events,
		})
	}
	printSearchTable(cmd, res, searchLimit)
	return nil
}

func printSearchTable(cmd *cobra.Command, res *router.Result, limit int) {
	if res.Count != nil {
		cmd.Println(formatter.FormatCount(*res.Count, res.Classification.Year))
		return
	}
	if !res.Found() || len(res.Events) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Printf("Strategy: %s\n\n", res.Strategy)
	for i, re := range res.Events {
		if limit > 0 && i >= limit {
			cmd.Printf("  ... %d more\n", len(res.Events)-limit)
			break
		}
		cmd.Printf("  [%d] %s (%s, %s)", i+1, re.Event.Name, re.Event.Domain, re.Event.DateString())
		if re.FinalScore > 0 {
			cmd.Printf(" %.2f", re.FinalScore)
		}
		cmd.Println()
		if !types.IsBlank(re.Event.Venue) {
			cmd.Printf("      Venue: %s\n", re.Event.Venue)
		}
		cmd.Printf("      Fee: %s\n", formatter.FormatFee(re.Event.RegistrationFee))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
