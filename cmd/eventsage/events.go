package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/eventsage/internal/app"
	"github.com/dshills/eventsage/internal/indexer"
)

var addInput indexer.EventInput

var addEventCmd = &cobra.Command{
	Use:   "add-event",
	Short: "Add and index one event",
	Long: `Adds one event. --name, --domain, --date and --description are
required. Missing optional fields default to "N/A", mode to offline and
the fee to 0.`,
	Args: cobra.NoArgs,
	RunE: runAddEvent,
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import events from a YAML or JSON file",
	Long: `Imports a list of events, or a document with an "events" key, from a
YAML or JSON file. Invalid records are skipped and reported; the valid
records are embedded and inserted in one transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recompute every stored embedding with the configured model",
	Long: `Recomputes all embeddings with the configured embedding provider.
Run it after changing embedding_model or embedding_dim; the service
refuses to start while the stored dimension differs.`,
	Args: cobra.NoArgs,
	RunE: runReembed,
}

func init() {
	f := addEventCmd.Flags()
	f.StringVar(&addInput.Name, "name", "", "event name")
	f.StringVar(&addInput.Domain, "domain", "", "topic area, e.g. AI")
	f.StringVar(&addInput.Date, "date", "", "event date, YYYY-MM-DD")
	f.StringVar(&addInput.Time, "time", "", "start time")
	f.StringVar(&addInput.Venue, "venue", "", "venue")
	f.StringVar(&addInput.Mode, "mode", "", "online, offline or hybrid")
	f.StringVar(&addInput.FacultyCoordinators, "faculty", "", "faculty coordinators")
	f.StringVar(&addInput.StudentCoordinators, "students", "", "student coordinators")
	f.StringVar(&addInput.Speakers, "speakers", "", "speakers")
	f.Float64Var(&addInput.RegistrationFee, "fee", 0, "registration fee, 0 for free")
	f.StringVar(&addInput.Perks, "perks", "", "perks")
	f.StringVar(&addInput.Collaboration, "collaboration", "", "collaborating organizations")
	f.StringVar(&addInput.Description, "description", "", "event description")
	for _, name := range []string{"name", "domain", "date", "description"} {
		_ = addEventCmd.MarkFlagRequired(name)
	}

	rootCmd.AddCommand(addEventCmd, importCmd, reembedCmd)
}

func runAddEvent(cmd *cobra.Command, _ []string) error {
	svc, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)

	ev, err := svc.AddInput(cmd.Context(), addInput)
	if err != nil {
		return fmt.Errorf("add event failed: %w", err)
	}
	cmd.Printf("Added event %d: %s (%s)\n", ev.ID, ev.Name, ev.DateString())
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	svc, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)

	stats, err := svc.Indexer.ImportFile(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	printStatistics(cmd, "Imported", stats)
	return nil
}

func runReembed(cmd *cobra.Command, _ []string) error {
	svc, err := openService(cmd, app.WithoutDimensionCheck())
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)

	stats, err := svc.Indexer.Reembed(cmd.Context())
	if err != nil {
		return fmt.Errorf("reembed failed: %w", err)
	}
	printStatistics(cmd, "Re-embedded", stats)
	cmd.Printf("Model: %s (%d dimensions)\n", svc.Embedder.Model(), svc.Embedder.Dimension())
	return nil
}

func printStatistics(cmd *cobra.Command, verb string, stats *indexer.Statistics) {
	cmd.Printf("%s %d events in %s\n", verb, stats.EventsIndexed, stats.Duration.Round(time.Millisecond))
	if stats.EventsSkipped > 0 {
		cmd.Printf("Skipped %d invalid records:\n", stats.EventsSkipped)
		for _, msg := range stats.ErrorMessages {
			cmd.Printf("  - %s\n", msg)
		}
	}
}
