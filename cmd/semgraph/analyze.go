package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"yashubustudio/semgraph/semgraph"
)

type analyzeOptions struct {
	inputPath  string
	outputPath string
	outputDir  string
	stdout     bool
}

var analyzeOpts analyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a text file and write the graph as JSON",
	Example: "semgraph analyze --input notes.txt --output graph.json\n" +
		"cat notes.txt | semgraph analyze --input - --stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzeOpts.inputPath = strings.TrimSpace(analyzeOpts.inputPath)
		analyzeOpts.outputPath = strings.TrimSpace(analyzeOpts.outputPath)
		analyzeOpts.outputDir = strings.TrimSpace(analyzeOpts.outputDir)
		if analyzeOpts.inputPath == "" {
			return errors.New("missing required --input file")
		}
		return runAnalyze(cmd.Context(), cmd.OutOrStdout(), analyzeOpts)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOpts.inputPath, "input", "", "text file to analyze, or - for stdin")
	analyzeCmd.Flags().StringVar(&analyzeOpts.outputPath, "output", "", "JSON file to write (default uses --output-dir/graph_*.json)")
	analyzeCmd.Flags().StringVar(&analyzeOpts.outputDir, "output-dir", "graphs", "directory where graphs are written when --output is omitted")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.stdout, "stdout", false, "print a per-group summary to STDOUT")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(ctx context.Context, out io.Writer, opts analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	text, err := semgraph.ReadText(opts.inputPath)
	if err != nil {
		return err
	}
	svc, err := newService(cfg)
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}
	defer svc.Close()

	result, err := svc.Analyze(ctx, text)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if notice, ok := result.(semgraph.InsufficientInput); ok {
		return errors.New(notice.Message)
	}
	graph := result.(*semgraph.Graph)

	outputPath, err := resolveOutputPath(opts.outputPath, opts.outputDir)
	if err != nil {
		return err
	}
	if err := writeGraphJSON(outputPath, graph); err != nil {
		return err
	}
	fmt.Fprintf(out, "Graph written to %s\n", outputPath)

	if opts.stdout {
		printSummary(out, graph)
	}
	return nil
}

func resolveOutputPath(path, dir string) (string, error) {
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve output path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		return absPath, nil
	}
	if dir == "" {
		dir = "graphs"
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	filename := fmt.Sprintf("graph_%s.json", time.Now().Format("20060102150405"))
	return filepath.Join(absDir, filename), nil
}

func writeGraphJSON(path string, graph *semgraph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(graph); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}

func printSummary(out io.Writer, graph *semgraph.Graph) {
	groups := make(map[int][]semgraph.Node)
	for _, n := range graph.Nodes {
		groups[n.Group] = append(groups[n.Group], n)
	}
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "==== %d lines in %d groups ====\n", len(graph.Nodes), len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "group %d (%d)\n", id, len(groups[id]))
		for _, n := range groups[id] {
			fmt.Fprintf(out, "    %d. %s\n", n.ID, summarizeLine(n.FullText))
		}
	}
}

func summarizeLine(text string) string {
	runes := []rune(text)
	if len(runes) > 60 {
		return string(runes[:60]) + "…"
	}
	return text
}
