// Command referee runs a tournament between bot executables over the
// line-delimited wire protocol described in the referee/match/channel
// packages, then prints a summary and, optionally, a CSV results file.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"referee/config"
	"referee/game"
	"referee/metrics"
	"referee/referee"
	"referee/refgame"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "referee:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	g, err := selectGame(cfg.Game)
	if err != nil {
		return err
	}

	ref, err := referee.New(g, cfg.Executables, cfg.ToTournamentSettings(), cfg.Seed, logger)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		rec := metrics.NewRecorder()
		ref.AttachMetrics(rec)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := rec.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	res := ref.PlayTournament(cfg.NumMatches)

	if cfg.Verbose {
		res.PrintVerbose(os.Stdout)
	}

	if cfg.CSVPath != "" {
		f, err := os.Create(cfg.CSVPath)
		if err != nil {
			return fmt.Errorf("creating csv output %q: %w", cfg.CSVPath, err)
		}
		defer f.Close()
		if err := res.PrintCSV(f, true); err != nil {
			return fmt.Errorf("writing csv output: %w", err)
		}
	}

	return nil
}

// selectGame resolves a game name to its implementation. Only the
// reference game is registered; a real deployment would plug a full game
// engine in here behind the same game.Game contract.
func selectGame(name string) (game.Game, error) {
	switch name {
	case "pennies", "":
		return refgame.NewPennies(), nil
	default:
		return nil, fmt.Errorf("unknown game %q", name)
	}
}
