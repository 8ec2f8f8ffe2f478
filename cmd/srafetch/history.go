package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nishad/srafetch/internal/database"
	"github.com/nishad/srafetch/internal/export"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded batches",
	Long: `Inspect batches saved with --record or history.enabled.

History is a record of past runs only; it is never used to skip requests
to GEO or ENA.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded batches, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show one recorded batch",
	Long: `Show the summary and failures of a recorded batch. With --format the
batch's descriptors are written instead, so a past download list can be
regenerated without contacting the archives.`,
	Example: `  srafetch history show 6f1c0c1e-8d43-4a53-9b7e-0d1f5b2a9c11
  srafetch history show 6f1c0c1e-8d43-4a53-9b7e-0d1f5b2a9c11 --format aria2 > downloads.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryShow,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history database statistics",
	Args:  cobra.NoArgs,
	RunE:  runHistoryStats,
}

var (
	historyLimit  int
	historyJSON   bool
	historyFormat string
)

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum batches to list (0 = all)")
	historyListCmd.Flags().BoolVar(&historyJSON, "json", false, "Output JSON")
	historyShowCmd.Flags().StringVarP(&historyFormat, "format", "f", "", "Write descriptors in this format (aria2|json|jsonl|yaml|tsv)")
	historyShowCmd.Flags().BoolVar(&historyJSON, "json", false, "Output the whole batch as JSON")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
}

// openHistory opens the configured history database; it must already exist.
func openHistory() (*database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.History.Path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no history database at %s (run with --record first)", cfg.History.Path)
	}
	return database.Initialize(cfg.History.Path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	batches, err := db.ListBatches(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(batches)
	}

	if len(batches) == 0 {
		printInfo("No batches recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tLINES\tPIPELINES\tDESCRIPTORS\tFAILURES")
	for _, b := range batches {
		id := b.ID
		if b.Interrupted {
			id += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
			id, b.CreatedAt.Local().Format(time.DateTime),
			b.LineCount, b.PipelineCount, b.DescriptorCount, b.FailureCount)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	var format export.Format
	if historyFormat != "" {
		f, err := export.ParseFormat(historyFormat)
		if err != nil {
			return err
		}
		format = f
	}

	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	batch, err := db.GetBatch(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case format != "":
		return export.Write(out, format, batch.Descriptors)
	case historyJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	}

	fmt.Fprintf(out, "%s %s\n", colorize(boldStyle, "Batch:"), batch.ID)
	fmt.Fprintf(out, "  Created:     %s\n", batch.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "  Took:        %v\n", batch.FinishedAt.Sub(batch.CreatedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "  Lines:       %d\n", batch.LineCount)
	fmt.Fprintf(out, "  Pipelines:   %d\n", batch.PipelineCount)
	fmt.Fprintf(out, "  Descriptors: %d\n", batch.DescriptorCount)
	if batch.Interrupted {
		fmt.Fprintf(out, "  %s\n", colorize(warningStyle, "Interrupted before every line was launched"))
	}

	if len(batch.Failures) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s\n", colorize(boldStyle, "Failures:"))
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, f := range batch.Failures {
			fmt.Fprintf(tw, "  line %d\t%s\t%s\t%s\n", f.Line, f.Kind, f.Input, f.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.GetStats()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", colorize(boldStyle, "Database:"), db.Path())
	fmt.Fprintf(out, "  Batches:     %d\n", stats.Batches)
	fmt.Fprintf(out, "  Descriptors: %d\n", stats.Descriptors)
	fmt.Fprintf(out, "  Failures:    %d\n", stats.Failures)
	fmt.Fprintf(out, "  Size:        %.1f KB\n", float64(stats.Size)/1024)
	return nil
}
