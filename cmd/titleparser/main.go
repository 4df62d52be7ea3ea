// Command titleparser is the CLI entry point for the market-research
// title extraction pipeline: parse a single title, run a batch from a
// file, or inspect the loaded pattern library.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marketlens/titleparser"
	"github.com/marketlens/titleparser/internal/config"
	"github.com/marketlens/titleparser/internal/obsv"
	"github.com/marketlens/titleparser/internal/patterns"
	"github.com/marketlens/titleparser/internal/report"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	ExitSuccess          = 0
	ExitGeneral          = 1
	ExitConfigError      = 2
	ExitReportWriteError = 3
)

type globalFlags struct {
	ConfigFile string
	LogLevel   string
}

type parseFlags struct {
	Title string
}

type batchFlags struct {
	InputFile  string
	OutDir     string
	ScriptName string
	BatchID    string
}

type patternsFlags struct {
	Kind string
}

var (
	global       globalFlags
	parseConfig  parseFlags
	batchConfig  batchFlags
	patternsConf patternsFlags
)

var rootCmd = &cobra.Command{
	Use:   "titleparser",
	Short: "Market-research title extraction pipeline",
	Long: `titleparser runs market-research report titles through a seven-stage
pipeline: market-term classification, forecast date extraction, report-type
extraction, geographic detection, topic extraction, confidence scoring, and
batch orchestration.`,
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a single title",
	Long: `Parse one title through the full pipeline and print its result as JSON.

Example:
  titleparser parse --title "Global Artificial Intelligence Market Size & Share Report, 2030"`,
	RunE: runParse,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Parse a newline-delimited file of titles and write a batch report",
	Long: `Parse every title in --input (one per line, blank lines skipped) and write
pipeline_results.json plus the per-run text artifacts to a timestamped
directory under --out-dir.

Example:
  titleparser batch --input ./titles.txt --out-dir ./outputs`,
	RunE: runBatch,
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the active patterns loaded from the pattern store",
	Long: `List active patterns for a pattern kind (default: all kinds), one per line,
with priority and match term.

Example:
  titleparser patterns --kind market_term`,
	RunE: runPatterns,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("titleparser version %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&global.ConfigFile, "config", "", "config YAML file (optional, defaults applied if absent)")
	rootCmd.PersistentFlags().StringVar(&global.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	parseCmd.Flags().StringVar(&parseConfig.Title, "title", "", "title to parse (required)")
	_ = parseCmd.MarkFlagRequired("title")

	batchCmd.Flags().StringVar(&batchConfig.InputFile, "input", "", "newline-delimited file of titles (required)")
	batchCmd.Flags().StringVar(&batchConfig.OutDir, "out-dir", "outputs", "root output directory for batch reports")
	batchCmd.Flags().StringVar(&batchConfig.ScriptName, "name", "titleparser", "run label used in the output directory name")
	batchCmd.Flags().StringVar(&batchConfig.BatchID, "batch-id", "", "batch id to use (default: autogenerated)")
	_ = batchCmd.MarkFlagRequired("input")

	patternsCmd.Flags().StringVar(&patternsConf.Kind, "kind", "", "pattern kind to list (default: all kinds)")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(ExitGeneral)
	}
}

func loadConfig() (*config.Config, error) {
	if global.ConfigFile == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.NewLoader(global.ConfigFile).Load()
}

func newParserFromConfig(ctx context.Context) (*titleparser.Parser, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return titleparser.New(ctx, *cfg)
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	parser, err := newParserFromConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(ExitConfigError)
	}
	defer func() { _ = parser.Close(ctx) }()

	result := parser.ParseTitle(ctx, parseConfig.Title)
	data, err := json.MarshalIndent(result.Document(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to encode result: %v\n", err)
		os.Exit(ExitGeneral)
	}
	fmt.Println(string(data))
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	titles, err := readTitles(batchConfig.InputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to read %q: %v\n", batchConfig.InputFile, err)
		os.Exit(ExitConfigError)
	}
	if len(titles) == 0 {
		fmt.Fprintf(os.Stderr, "ERROR: %q contains no titles\n", batchConfig.InputFile)
		os.Exit(ExitConfigError)
	}

	parser, err := newParserFromConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(ExitConfigError)
	}
	defer func() { _ = parser.Close(ctx) }()

	res, batchStats := parser.ParseBatchWithID(ctx, titles, batchConfig.BatchID)

	writer := report.NewWriter(batchConfig.OutDir, batchConfig.ScriptName)
	dir, err := writer.WriteBatch(res, batchStats)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to write batch report: %v\n", err)
		os.Exit(ExitReportWriteError)
	}

	fmt.Printf("Processed %d titles (%d completed, %d failed, %d requires review)\n",
		batchStats.TotalTitles, batchStats.Completed, batchStats.Failed, batchStats.RequiresReview)
	fmt.Printf("Report written to %s\n", dir)
	return nil
}

func readTitles(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var titles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		titles = append(titles, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return titles, nil
}

func runPatterns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(ExitConfigError)
	}

	logger := obsv.Logger()
	mongoCfg := patterns.DefaultMongoConfig()
	mongoCfg.URI = cfg.Store.URI
	if cfg.Store.Database != "" {
		mongoCfg.Database = cfg.Store.Database
	}

	store, err := patterns.NewMongoStore(ctx, mongoCfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to connect to pattern store: %v\n", err)
		os.Exit(ExitGeneral)
	}
	defer func() { _ = store.Close(ctx) }()

	kinds := allPatternKinds()
	if patternsConf.Kind != "" {
		kinds = []patterns.Kind{patterns.Kind(patternsConf.Kind)}
	}

	for _, kind := range kinds {
		compiled := store.Patterns(kind)
		fmt.Printf("%s (%d active)\n", kind, len(compiled))
		for _, c := range compiled {
			fmt.Printf("  [%d] %s\n", c.Priority, c.Term)
		}
	}
	return nil
}

func allPatternKinds() []patterns.Kind {
	return []patterns.Kind{
		patterns.KindMarketTerm,
		patterns.KindDatePattern,
		patterns.KindReportTypePattern,
		patterns.KindReportTypeDictionary,
		patterns.KindGeographicEntity,
		patterns.KindConfusingTerm,
		patterns.KindAcronymEmbeddedTemplate,
	}
}
