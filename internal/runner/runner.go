package runner

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/edudar/system-rules/internal/checker"
	"github.com/edudar/system-rules/pkg/report"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type Config struct {
	Output       string
	RunID        string
	Width        int
	ShowProgress bool
	// Out and Err are fixed before the first case runs: cases replace the
	// os.Stdout and os.Stderr variables while they execute.
	Out io.Writer
	Err io.Writer
}

// Outcome is everything a run produced, in case order.
type Outcome struct {
	Counts  report.Counts
	Results []checker.Result
	Elapsed time.Duration
}

// Run executes cases one after another and prints each result as soon as it
// is known. It stops early when ctx is cancelled and returns ctx.Err().
func Run(ctx context.Context, cases []checker.Case, cfg Config) (Outcome, error) {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Err == nil {
		cfg.Err = os.Stderr
	}
	log := clog.FromContext(ctx)

	var progress *mpb.Progress
	var bar *mpb.Bar
	if cfg.ShowProgress && len(cases) > 0 {
		progress, bar = initProgressBar(ctx, cfg.Err, int64(len(cases)))
	}

	var out Outcome
	start := time.Now()
	var err error
	for _, c := range cases {
		if err = ctx.Err(); err != nil {
			break
		}
		log.With("case", c.Name).Debug("running case")
		res := checker.Execute(c)
		log.With("case", c.Name, "status", string(res.Status), "duration", res.Duration).Debug("case finished")

		out.Counts.Add(res)
		out.Results = append(out.Results, res)
		handleResult(res, cfg, bar, progress)
	}
	out.Elapsed = time.Since(start)

	if progress != nil {
		if err != nil {
			progress.Shutdown()
		} else {
			progress.Wait()
		}
	}
	return out, err
}

func handleResult(res checker.Result, cfg Config, bar *mpb.Bar, progress *mpb.Progress) {
	var w io.Writer = cfg.Out
	if progress != nil && cfg.Output != "json" {
		w = progress
	}
	if err := report.PrintCaseResult(w, cfg.Output, cfg.RunID, res, cfg.Width); err != nil {
		_, _ = io.WriteString(cfg.Err, "Error: "+err.Error()+"\n")
	}
	if bar != nil {
		bar.Increment()
	}
}

// PrintSummary writes the closing summary in the configured format.
func PrintSummary(out Outcome, cfg Config) error {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Output == "json" {
		return report.PrintJSONSummary(cfg.Out, cfg.RunID, out.Counts)
	}
	return report.PrintSummary(cfg.Out, out.Counts, out.Elapsed)
}

func initProgressBar(ctx context.Context, w io.Writer, total int64) (*mpb.Progress, *mpb.Bar) {
	p := mpb.NewWithContext(ctx, mpb.WithOutput(w))
	b := p.New(total,
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding(" ").Rbound("]"),
		mpb.PrependDecorators(decor.Name("Checking ")),
		mpb.AppendDecorators(
			decor.CountersNoUnit(" %d / %d "),
			decor.AverageETA(decor.ET_STYLE_MMSS),
		),
		mpb.BarRemoveOnComplete(),
	)
	return p, b
}
