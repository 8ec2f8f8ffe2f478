package main

import (
	"fmt"
	"os"

	"github.com/nishad/srafetch/internal/api"
	"github.com/spf13/cobra"
)

// Version info
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// Global flags
var (
	noColor    bool
	quiet      bool
	verbose    bool
	debug      bool
	configPath string
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "srafetch ['ACCESSION [NAME]'...]",
	Short: "Resolve SRA/GEO accessions to ENA download descriptors",
	Long: `srafetch reads SRA experiment (SRX), SRA run (SRR) and GEO sample (GSM)
accessions, one per line with an optional name, and prints download
descriptors for every run file published by ENA.

GEO samples are first resolved to their SRA experiment through GEO. Lines
are launched no faster than one per --interval and resolved concurrently.
The default output is an aria2c input file with MD5 checksums.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Example: `  # Generate an aria2c input file
  printf 'SRR000001\nGSM2344754 liver\n' | srafetch > downloads.txt
  aria2c -i downloads.txt

  # JSON descriptors for a list of experiments
  srafetch --json --input experiments.txt

  # Upload the download list to S3 and keep a history record
  srafetch -o s3://my-bucket/runs.aria2 --record < accessions.txt`,
	Args: cobra.ArbitraryArgs,
	RunE: runResolve,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $SRAFETCH_CONFIG, ./srafetch.yaml or the user config dir)")

	// Resolve flags
	rootCmd.Flags().IntVarP(&resolveInterval, "interval", "i", 200, "Minimum time between pipeline launches in milliseconds")
	rootCmd.Flags().StringVar(&resolveInput, "input", "", "Read accessions from a file instead of stdin")
	rootCmd.Flags().BoolVar(&resolveJSON, "json", false, "Output JSON instead of aria2 input")
	rootCmd.Flags().StringVarP(&resolveFormat, "format", "f", "", "Output format (aria2|json|jsonl|yaml|tsv)")
	rootCmd.Flags().StringVarP(&resolveOutput, "output", "o", "", "Write output to a file or s3://bucket/key (default: stdout)")
	rootCmd.Flags().BoolVar(&resolveRecord, "record", false, "Save the batch to the history database")
	rootCmd.Flags().BoolVar(&resolveFailOnError, "fail-on-error", false, "Exit non-zero if any line or accession failed")
	rootCmd.Flags().IntVar(&resolveTimeout, "timeout", 30, "Per-request timeout in seconds (0 = none)")
	rootCmd.Flags().IntVar(&resolveMaxInFlight, "max-in-flight", 0, "Maximum concurrent pipelines (0 = unbounded)")
	rootCmd.Flags().BoolVarP(&resolveProgress, "progress", "p", false, "Show a progress spinner on terminals")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	api.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
