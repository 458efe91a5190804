// sysrules runs the system-rules self-check catalogue outside of go test.
// Every case exercises one rule (environment restoration, stream capture,
// write prohibition, security manager replacement) against the real process
// state of the current platform and reports whether the rule held.
//
// Results can be printed as colored human-readable text or as NDJSON for
// piping into other tools. The outcome of the last run is kept in the user
// cache directory so that -rerun-failed can repeat only the failed cases.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/edudar/system-rules/internal/checker"
	"github.com/edudar/system-rules/internal/runner"
	"github.com/edudar/system-rules/internal/selfcheck"
	"github.com/edudar/system-rules/pkg/cache"
	"github.com/edudar/system-rules/pkg/filter"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/term"
)

// version can be overridden at build time with:
//
//	go build -ldflags "-X main.version=v1.2.3"
var version = "dev"

// envConfig holds the defaults read from the environment. Flags override them.
type envConfig struct {
	Output  string `env:"SYSRULES_OUTPUT, default=text"`
	NoColor bool   `env:"SYSRULES_NO_COLOR, default=false"`
	Include string `env:"SYSRULES_INCLUDE"`
	Exclude string `env:"SYSRULES_EXCLUDE"`
	Verbose bool   `env:"SYSRULES_VERBOSE, default=false"`
}

type appConfig struct {
	ctx        context.Context
	runCfg     runner.Config
	filterCfg  filter.Config
	list       bool
	flushCache func([]checker.Result)
	stop       func()
}

var (
	errVersion = errors.New("version requested")
	errUsage   = errors.New("unexpected arguments")
)

func main() {
	os.Exit(run())
}

// Exit codes: 0 = all cases passed, 1 = error, 2 = at least one case failed.
func run() int {
	cfg, err := parseConfig()
	if err != nil {
		switch {
		case errors.Is(err, errVersion):
			fmt.Println("sysrules", version)
			return 0
		case errors.Is(err, errUsage):
			flag.Usage()
			return 1
		default:
			fmt.Fprintln(os.Stderr, "Error:", err)
			return 1
		}
	}
	defer cfg.stop()

	cases := filter.Select(selfcheck.All(), func(c checker.Case) string { return c.Name }, cfg.filterCfg)
	if cfg.list {
		for _, c := range cases {
			fmt.Fprintln(cfg.runCfg.Out, c.Name)
		}
		return 0
	}

	clog.FromContext(cfg.ctx).With("run_id", cfg.runCfg.RunID, "cases", len(cases)).Debug("starting run")
	out, err := runner.Run(cfg.ctx, cases, cfg.runCfg)
	cfg.flushCache(out.Results)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	if err := runner.PrintSummary(out, cfg.runCfg); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	if out.Counts.Failed > 0 {
		return 2
	}
	return 0
}

// parseConfig reads environment defaults, parses CLI flags, validates them
// and initializes the run resources (logger, cache, signal handler).
func parseConfig() (appConfig, error) {
	var env envConfig
	if err := envconfig.Process(context.Background(), &env); err != nil {
		return appConfig{}, fmt.Errorf("reading environment: %w", err)
	}

	output := flag.String("o", env.Output, "output format: text or json (env SYSRULES_OUTPUT)")
	noColor := flag.Bool("no-color", env.NoColor, "disable colored output (env SYSRULES_NO_COLOR)")
	noProgress := flag.Bool("no-progress", false, "disable progress bar")
	include := flag.String("include", env.Include, "comma-separated case name patterns; only run matching cases (e.g. \"env,stdout/*\")")
	exclude := flag.String("exclude", env.Exclude, "comma-separated case name patterns; skip matching cases")
	list := flag.Bool("list", false, "print the selected case names and exit")
	rerunFailed := flag.Bool("rerun-failed", false, "run only the cases that failed in the last run")
	noCache := flag.Bool("no-cache", false, "do not read or write the last-run file")
	verbose := flag.Bool("v", env.Verbose, "log debug details to stderr (env SYSRULES_VERBOSE)")
	showVersion := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sysrules [flags]\n\nFlags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		return appConfig{}, errVersion
	}
	if flag.NArg() > 0 {
		return appConfig{}, errUsage
	}

	switch *output {
	case "text", "json":
	default:
		return appConfig{}, fmt.Errorf("invalid -o value; must be 'text' or 'json'")
	}

	includes := filter.ParsePatterns(*include)
	excludes := filter.ParsePatterns(*exclude)
	if err := filter.Validate("-include", includes); err != nil {
		return appConfig{}, err
	}
	if err := filter.Validate("-exclude", excludes); err != nil {
		return appConfig{}, err
	}
	if *rerunFailed && *noCache {
		return appConfig{}, fmt.Errorf("-rerun-failed needs the last-run file; drop -no-cache")
	}

	if *output == "json" || *noColor {
		color.NoColor = true
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Cancelled on Ctrl+C; the runner stops before the next case.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx = clog.WithLogger(ctx, logger)

	// On error stop() must be called here. On success, ownership of stop()
	// transfers to the caller via appConfig.stop.
	succeeded := false
	defer func() {
		if !succeeded {
			stop()
		}
	}()

	// Graceful degradation: warn and continue without the last-run file.
	var lastRun map[string]cache.Entry
	var cachePath string
	if !*noCache {
		var err error
		cachePath, err = cache.FilePath()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Warning: cache disabled:", err)
		} else if lastRun, err = cache.Load[cache.Entry](cachePath); err != nil {
			fmt.Fprintln(os.Stderr, "Warning: ignoring last-run file:", err)
			lastRun = nil
		}
	}
	if lastRun == nil {
		lastRun = make(map[string]cache.Entry)
	}

	filterCfg := filter.Config{Includes: includes, Excludes: excludes}
	if *rerunFailed {
		if cachePath == "" {
			return appConfig{}, fmt.Errorf("-rerun-failed: no last-run file available")
		}
		filterCfg.Only = cache.Failed(lastRun)
	}

	runID := uuid.NewString()

	// Progress bar: text output only, on a real terminal (not piped).
	showProgress := *output == "text" && !*noProgress &&
		isatty.IsTerminal(os.Stderr.Fd())

	width := 0
	if isatty.IsTerminal(os.Stdout.Fd()) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
	}

	flushCache := func(results []checker.Result) {
		if cachePath == "" || len(results) == 0 {
			return
		}
		now := time.Now().UTC()
		for _, res := range results {
			lastRun[res.Name] = cache.Entry{Status: string(res.Status), RunID: runID, Timestamp: now}
		}
		if err := cache.Save(cachePath, lastRun); err != nil {
			fmt.Fprintln(os.Stderr, "Warning: failed to save last-run file:", err)
		}
	}

	succeeded = true
	return appConfig{
		ctx: ctx,
		runCfg: runner.Config{
			Output:       *output,
			RunID:        runID,
			Width:        width,
			ShowProgress: showProgress,
			Out:          os.Stdout,
			Err:          os.Stderr,
		},
		filterCfg:  filterCfg,
		list:       *list,
		flushCache: flushCache,
		stop:       stop,
	}, nil
}
