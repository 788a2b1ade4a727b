// Command symptomctl builds and queries symptom index snapshots from the
// command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/suggest"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "symptomctl",
		Usage: "Build symptom index snapshots and rank diseases by symptoms",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"SSP_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Snapshot prefix, overriding indexer.dataDir/snapshotPrefix",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: func(c *cli.Context) error {
			slog.SetDefault(logger.New(c.App.ErrWriter, c.String("log-level"), "text"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build an index from the configured corpus and save a snapshot",
				Action: buildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "csv",
						Usage: "Read the corpus from this CSV file instead of the configured source",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Rank diseases for the given symptoms",
				ArgsUsage: "SYMPTOM[,SYMPTOM...] ...",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Number of diseases to return", Value: 5},
				},
			},
			{
				Name:      "suggest",
				Usage:     "Suggest follow-up symptoms to ask about",
				ArgsUsage: "SYMPTOM[,SYMPTOM...] ...",
				Action:    suggestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top", Usage: "Number of ranked diseases to draw symptoms from", Value: 5},
				},
			},
			{
				Name:      "correct",
				Usage:     "Map a possibly misspelled symptom onto known symptoms",
				ArgsUsage: "SYMPTOM",
				Action:    correctCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of matches", Value: 5},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print statistics of the saved snapshot",
				Action: statsCommand,
			},
		},
	}
}

// loadConfig reads the config file, or defaults plus environment overrides
// when none is given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newEngine(c *cli.Context, cfg *config.Config) (*indexer.Engine, string, error) {
	engine, err := indexer.NewEngine(cfg.Indexer, indexer.WithCorpusOptions(corpus.OptionsFromConfig(cfg.Corpus)))
	if err != nil {
		return nil, "", err
	}
	prefix := c.String("prefix")
	if prefix == "" {
		prefix = engine.SnapshotPrefix()
	}
	return engine, prefix, nil
}

// openServing loads the snapshot and wires the query side on top of it.
func openServing(c *cli.Context) (*indexer.Engine, *executor.Executor, *suggest.Suggester, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}
	engine, prefix, err := newEngine(c, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := engine.Load(prefix); err != nil {
		return nil, nil, nil, err
	}
	exec := executor.New(engine, executor.WithWeights(ranker.WeightsFromConfig(cfg.Search)))
	sg := suggest.New(engine, exec,
		suggest.WithMaxSuggestions(cfg.Search.MaxSuggestions),
		suggest.WithSpellingThreshold(cfg.Search.SpellingThreshold),
	)
	return engine, exec, sg, nil
}

func buildCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, prefix, err := newEngine(c, cfg)
	if err != nil {
		return err
	}

	var records []corpus.Record
	if path := c.String("csv"); path != "" {
		records, _, err = corpus.NewLoader(corpus.OptionsFromConfig(cfg.Corpus)).LoadFile(path)
	} else {
		records, _, err = corpus.LoadConfigured(context.Background(), cfg)
	}
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	idx, err := engine.Build(records)
	if err != nil {
		return err
	}
	if err := engine.Save(prefix); err != nil {
		return err
	}
	return printJSON(c.App.Writer, indexer.NewSnapshotEvent(prefix, idx))
}

func queryCommand(c *cli.Context) error {
	_, exec, _, err := openServing(c)
	if err != nil {
		return err
	}
	results, err := exec.Query(parser.ParseAll(c.Args().Slice()), c.Int("top-k"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, results)
}

func suggestCommand(c *cli.Context) error {
	_, _, sg, err := openServing(c)
	if err != nil {
		return err
	}
	out, err := sg.Suggest(parser.ParseAll(c.Args().Slice()), c.Int("top"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, out)
}

func correctCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("correct takes exactly one symptom, got %d", c.NArg())
	}
	_, _, sg, err := openServing(c)
	if err != nil {
		return err
	}
	out, err := sg.Correct(c.Args().First(), c.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, out)
}

func statsCommand(c *cli.Context) error {
	engine, _, _, err := openServing(c)
	if err != nil {
		return err
	}
	summary, err := engine.Stats()
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, map[string]any{
		"snapshot_id": engine.Current().ID(),
		"summary":     summary,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
