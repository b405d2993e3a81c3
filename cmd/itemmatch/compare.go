package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/itemmatch/internal/config"
	itemmatch "github.com/kailas-cloud/itemmatch/pkg/sdk"
)

// maxLineBytes bounds one item in an input file.
const maxLineBytes = 1 << 20

var (
	leftPath  string
	rightPath string
	threshold float64
	format    string
	verbose   bool
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two item files (one item per line)",
	Long: `Compare reads two files with one item per line, asks the configured
oracle for matches and prints the pairs that reach --threshold.

Blank lines are skipped; other lines are used verbatim.`,
	Example: `  itemmatch compare --left fruits_a.txt --right fruits_b.txt --threshold 0.8
  itemmatch compare --left a.txt --right b.txt --threshold 0.5 --format json`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&leftPath, "left", "", "File with the first item list")
	compareCmd.Flags().StringVar(&rightPath, "right", "", "File with the second item list")
	compareCmd.Flags().Float64Var(&threshold, "threshold", 0.8, "Minimum similarity in [0,1]")
	compareCmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	compareCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log SDK operations to stderr")
	_ = compareCmd.MarkFlagRequired("left")
	_ = compareCmd.MarkFlagRequired("right")
}

func runCompare(cmd *cobra.Command, _ []string) error {
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}

	items1, err := readItems(leftPath)
	if err != nil {
		return err
	}
	items2, err := readItems(rightPath)
	if err != nil {
		return err
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client, err := newSDKClient(ctx, cfg)
	if err != nil {
		return err
	}

	res, err := client.Compare(ctx, items1, items2, threshold)
	if err != nil {
		return fmt.Errorf("compare (%s): %w", itemmatch.Kind(err), err)
	}

	return render(cmd.OutOrStdout(), format, res)
}

func newSDKClient(ctx context.Context, cfg config.Config) (*itemmatch.Client, error) {
	opts := []itemmatch.Option{
		itemmatch.WithTimeout(cfg.Oracle.Timeout()),
		itemmatch.WithMaxItems(cfg.Comparison.MaxItems),
	}
	switch cfg.Oracle.Provider {
	case "gemini":
		opts = append(opts, itemmatch.WithGemini(cfg.Oracle.APIKey, cfg.Oracle.Model))
	default:
		opts = append(opts, itemmatch.WithOpenAI(cfg.Oracle.APIKey, cfg.Oracle.BaseURL, cfg.Oracle.Model))
	}
	if cfg.Oracle.JSONMode {
		opts = append(opts, itemmatch.WithJSONMode())
	}
	if cfg.Oracle.RequestsPerSecond > 0 {
		opts = append(opts, itemmatch.WithRateLimit(cfg.Oracle.RequestsPerSecond, cfg.Oracle.Burst))
	}
	if verbose {
		opts = append(opts, itemmatch.WithLogger(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: slog.LevelDebug}))))
	}

	client, err := itemmatch.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// readItems returns the non-blank lines of path, without line terminators.
func readItems(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	items, err := scanItems(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return items, nil
}

func scanItems(r io.Reader) ([]string, error) {
	items := []string{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		items = append(items, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by readItems
	}
	return items, nil
}

type jsonMatch struct {
	Item1      string  `json:"item1"`
	Item2      string  `json:"item2"`
	Similarity float64 `json:"similarity"`
}

type jsonOutput struct {
	Matches     []jsonMatch `json:"matches"`
	TotalTokens int         `json:"total_tokens"`
}

func render(w io.Writer, format string, res itemmatch.Result) error {
	if format == "json" {
		out := jsonOutput{Matches: make([]jsonMatch, 0, len(res.Matches)), TotalTokens: res.TotalTokens}
		for _, m := range res.Matches {
			out.Matches = append(out.Matches, jsonMatch(m))
		}
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ITEM1\tITEM2\tSIMILARITY")
	for _, m := range res.Matches {
		_, _ = fmt.Fprintf(tw, "%q\t%q\t%.2f\n", m.Item1, m.Item2, m.Similarity)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	_, err := fmt.Fprintf(w, "\n%d match(es), %d oracle tokens\n", len(res.Matches), res.TotalTokens)
	return err //nolint:wrapcheck // terminal output
}
