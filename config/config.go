// Package config loads tournament configuration from CLI flags and an
// optional YAML settings file. CLI argument parsing and config file
// parsing aesthetics are explicitly out of scope for the referee core;
// this package exists only to turn either source into a
// settings.TournamentSettings the core understands.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"referee/settings"
)

// Settings is the on-disk/flag representation of a tournament run: the
// game to play, the bot executables, and the timing/disqualification
// policy.
type Settings struct {
	Game        string   `yaml:"game"`
	Executables []string `yaml:"executables"`
	NumMatches  int      `yaml:"num_matches"`
	Seed        uint64   `yaml:"seed"`

	TimeoutReadyMs       int     `yaml:"timeout_ready_ms"`
	TimeoutStartMs       int     `yaml:"timeout_start_ms"`
	TimeoutActMs         int     `yaml:"timeout_act_ms"`
	TimeoutPonderMs      int     `yaml:"timeout_ponder_ms"`
	TimeoutMatchOverMs   int     `yaml:"timeout_match_over_ms"`
	TimeTournamentOverMs int     `yaml:"time_tournament_over_ms"`
	MaxInvalidBehaviors  int     `yaml:"max_invalid_behaviors"`
	DisqualificationRate float64 `yaml:"disqualification_rate"`

	MetricsAddr string `yaml:"metrics_addr"`
	Verbose     bool   `yaml:"verbose"`
	CSVPath     string `yaml:"csv_path"`
}

// Default returns Settings seeded from settings.Default(), with no game,
// executables, or config-file-only fields set.
func Default() Settings {
	d := settings.Default()
	return Settings{
		NumMatches:           1,
		Seed:                 42,
		TimeoutReadyMs:       d.TimeoutReadyMs,
		TimeoutStartMs:       d.TimeoutStartMs,
		TimeoutActMs:         d.TimeoutActMs,
		TimeoutPonderMs:      d.TimeoutPonderMs,
		TimeoutMatchOverMs:   d.TimeoutMatchOverMs,
		TimeTournamentOverMs: d.TimeTournamentOverMs,
		MaxInvalidBehaviors:  d.MaxInvalidBehaviors,
		DisqualificationRate: d.DisqualificationRate,
	}
}

// ToTournamentSettings converts the timing/policy fields to a
// settings.TournamentSettings.
func (s Settings) ToTournamentSettings() settings.TournamentSettings {
	return settings.TournamentSettings{
		TimeoutReadyMs:       s.TimeoutReadyMs,
		TimeoutStartMs:       s.TimeoutStartMs,
		TimeoutActMs:         s.TimeoutActMs,
		TimeoutPonderMs:      s.TimeoutPonderMs,
		TimeoutMatchOverMs:   s.TimeoutMatchOverMs,
		TimeTournamentOverMs: s.TimeTournamentOverMs,
		MaxInvalidBehaviors:  s.MaxInvalidBehaviors,
		DisqualificationRate: s.DisqualificationRate,
	}
}

// Load parses args (typically os.Args[1:]) as flags, optionally merged
// over a YAML file named by -config. Flags always take precedence over
// the file, since flag.Parse applies them after the file is loaded.
func Load(args []string) (Settings, error) {
	cfg := Default()

	fs := flag.NewFlagSet("referee", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML settings file")
	game := fs.String("game", "pennies", "name of the game to referee")
	executables := fs.String("executables", "", "comma-separated list of bot executable paths")
	numMatches := fs.Int("num_matches", cfg.NumMatches, "number of matches to play")
	seed := fs.Uint64("seed", cfg.Seed, "seed for the referee's PRNG")
	timeoutReady := fs.Int("timeout_ready", cfg.TimeoutReadyMs, "ready handshake deadline, ms")
	timeoutStart := fs.Int("timeout_start", cfg.TimeoutStartMs, "match start acknowledgement deadline, ms")
	timeoutAct := fs.Int("timeout_act", cfg.TimeoutActMs, "acting player's move deadline, ms")
	timeoutPonder := fs.Int("timeout_ponder", cfg.TimeoutPonderMs, "non-acting player's ponder deadline, ms")
	timeoutMatchOver := fs.Int("timeout_match_over", cfg.TimeoutMatchOverMs, "match-over acknowledgement deadline, ms")
	timeTournamentOver := fs.Int("time_tournament_over", cfg.TimeTournamentOverMs, "grace delay after tournament-over, ms")
	maxInvalid := fs.Int("max_invalid_behaviors", cfg.MaxInvalidBehaviors, "per-match error budget before substituting random moves")
	disqualificationRate := fs.Float64("disqualification_rate", cfg.DisqualificationRate, "fraction of matches a bot may corrupt before disqualification")
	metricsAddr := fs.String("metrics_addr", "", "address to serve Prometheus metrics on, e.g. :9090 (disabled if empty)")
	verbose := fs.Bool("verbose", false, "print a human-readable match-by-match report")
	csvPath := fs.String("csv", "", "path to write CSV match results to (disabled if empty)")

	// A first pass over -config alone lets the YAML file populate flag
	// defaults before the full flag.Parse below applies CLI overrides.
	if path := findConfigFlag(args); path != "" {
		fileCfg, err := loadYAML(path)
		if err != nil {
			return Settings{}, err
		}
		applyYAMLDefaults(fs, fileCfg)
	}

	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}

	cfg.Game = *game
	cfg.NumMatches = *numMatches
	cfg.Seed = *seed
	cfg.TimeoutReadyMs = *timeoutReady
	cfg.TimeoutStartMs = *timeoutStart
	cfg.TimeoutActMs = *timeoutAct
	cfg.TimeoutPonderMs = *timeoutPonder
	cfg.TimeoutMatchOverMs = *timeoutMatchOver
	cfg.TimeTournamentOverMs = *timeTournamentOver
	cfg.MaxInvalidBehaviors = *maxInvalid
	cfg.DisqualificationRate = *disqualificationRate
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	cfg.CSVPath = *csvPath
	cfg.Executables = splitNonEmpty(*executables, ',')
	_ = configPath // registered so fs.Parse recognizes -config; already consumed by findConfigFlag.

	return cfg, nil
}

// findConfigFlag scans args directly for -config/--config, without going
// through a flag.FlagSet, so it tolerates any other flags appearing
// before or after it.
func findConfigFlag(args []string) string {
	for i, a := range args {
		switch {
		case a == "-config" || a == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(a) > 8 && a[:8] == "-config=":
			return a[8:]
		case len(a) > 9 && a[:9] == "--config=":
			return a[9:]
		}
	}
	return ""
}

func loadYAML(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: opening %q: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return Settings{}, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return cfg, nil
}

// applyYAMLDefaults overrides fs's flag defaults with whatever fileCfg
// set, so that an unset CLI flag falls back to the file instead of the
// hardcoded default.
func applyYAMLDefaults(fs *flag.FlagSet, fileCfg Settings) {
	d := Default()
	set := func(name, value string) {
		if f := fs.Lookup(name); f != nil {
			f.DefValue = value
			_ = f.Value.Set(value)
		}
	}
	if fileCfg.Game != "" {
		set("game", fileCfg.Game)
	}
	if len(fileCfg.Executables) > 0 {
		set("executables", joinComma(fileCfg.Executables))
	}
	if fileCfg.NumMatches != d.NumMatches {
		set("num_matches", fmt.Sprint(fileCfg.NumMatches))
	}
	if fileCfg.Seed != d.Seed {
		set("seed", fmt.Sprint(fileCfg.Seed))
	}
	if fileCfg.TimeoutReadyMs != d.TimeoutReadyMs {
		set("timeout_ready", fmt.Sprint(fileCfg.TimeoutReadyMs))
	}
	if fileCfg.TimeoutStartMs != d.TimeoutStartMs {
		set("timeout_start", fmt.Sprint(fileCfg.TimeoutStartMs))
	}
	if fileCfg.TimeoutActMs != d.TimeoutActMs {
		set("timeout_act", fmt.Sprint(fileCfg.TimeoutActMs))
	}
	if fileCfg.TimeoutPonderMs != d.TimeoutPonderMs {
		set("timeout_ponder", fmt.Sprint(fileCfg.TimeoutPonderMs))
	}
	if fileCfg.TimeoutMatchOverMs != d.TimeoutMatchOverMs {
		set("timeout_match_over", fmt.Sprint(fileCfg.TimeoutMatchOverMs))
	}
	if fileCfg.TimeTournamentOverMs != d.TimeTournamentOverMs {
		set("time_tournament_over", fmt.Sprint(fileCfg.TimeTournamentOverMs))
	}
	if fileCfg.MaxInvalidBehaviors != d.MaxInvalidBehaviors {
		set("max_invalid_behaviors", fmt.Sprint(fileCfg.MaxInvalidBehaviors))
	}
	if fileCfg.DisqualificationRate != d.DisqualificationRate {
		set("disqualification_rate", fmt.Sprint(fileCfg.DisqualificationRate))
	}
	if fileCfg.MetricsAddr != "" {
		set("metrics_addr", fileCfg.MetricsAddr)
	}
	if fileCfg.CSVPath != "" {
		set("csv", fileCfg.CSVPath)
	}
	if fileCfg.Verbose {
		set("verbose", "true")
	}
}

func splitNonEmpty(s string, sep byte) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

