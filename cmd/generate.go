package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mainos-ai/mainos/config"
	"github.com/mainos-ai/mainos/internal/benchmark"
	"github.com/mainos-ai/mainos/internal/engine"
	"github.com/mainos-ai/mainos/internal/export"
	"github.com/mainos-ai/mainos/internal/llm"
	"github.com/mainos-ai/mainos/internal/search"
)

func generateCMD() *cobra.Command {
	var cfgPath string
	var reportType string
	var tone string
	var length string
	var runBenchmark bool
	var output string
	var timeout time.Duration

	var generate = &cobra.Command{
		Use:   "generate [topic]",
		Short: "Generate one report and print it as markdown",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			topic := strings.Join(args, " ")

			router, err := llm.NewRouter(cfg.LLM)
			if err != nil {
				return fmt.Errorf("llm providers: %w", err)
			}
			searcher, err := search.NewWebSearcher(cfg.Search)
			if err != nil {
				return fmt.Errorf("search provider: %w", err)
			}
			collector := search.NewCollector(cfg.Search, searcher, log.New(os.Stderr, "[SEARCH] ", log.LstdFlags))
			judge := benchmark.New(cfg.LLM.Routing.Benchmark, router, log.New(os.Stderr, "[BENCH] ", log.LstdFlags))
			eng := engine.New(cfg, router, collector, judge, nil, log.New(os.Stderr, "[ENGINE] ", log.LstdFlags))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			doc, err := eng.Run(ctx, engine.RunRequest{
				Topic:      topic,
				ReportType: engine.ReportType(reportType),
				Tone:       engine.Tone(tone),
				Length:     engine.Length(length),
				Benchmark:  runBenchmark,
			})
			if err != nil {
				return err
			}

			md := export.Markdown(doc)
			if output == "" {
				fmt.Print(md)
				return nil
			}
			return os.WriteFile(output, []byte(md), 0o644)
		},
	}
	generate.Flags().StringVar(&reportType, "type", "", "report type (market_analysis, swot_analysis, ...)")
	generate.Flags().StringVar(&tone, "tone", "", "writing tone")
	generate.Flags().StringVar(&length, "length", "", "target length (short, medium, detailed)")
	generate.Flags().BoolVar(&runBenchmark, "benchmark", false, "score the finished report with an LLM judge")
	generate.Flags().StringVarP(&output, "output", "o", "", "write markdown to file instead of stdout")
	generate.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "overall run timeout")
	generate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return generate
}
