package batch

import (
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"wavebatch/internal/logging"
	"wavebatch/internal/task"
)

// Progress receives per-task completion events during a run.
type Progress interface {
	Start(total int)
	Advance(result task.Result)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Start(int)           {}
func (nopProgress) Advance(task.Result) {}
func (nopProgress) Finish()             {}

// NewProgress picks a reporter for the current environment: an interactive
// bar when stderr is a terminal, periodic log lines otherwise.
func NewProgress(logger *slog.Logger) Progress {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return &barProgress{}
	}
	return &logProgress{logger: logging.WithComponent(logger, "progress")}
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Start(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("task"),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *barProgress) Advance(task.Result) {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// logProgress emits a line every logInterval completions so non-interactive
// runs still leave a trail.
type logProgress struct {
	logger *slog.Logger
	total  int
	done   int
	failed int
}

const logInterval = 100

func (p *logProgress) Start(total int) {
	p.total = total
}

func (p *logProgress) Advance(result task.Result) {
	p.done++
	if result.Failed() {
		p.failed++
	}
	if p.done%logInterval == 0 {
		p.logger.Info("progress",
			logging.Int("done", p.done),
			logging.Int("total", p.total),
			logging.Int("failed", p.failed))
	}
}

func (p *logProgress) Finish() {
	if p.done > 0 && p.done%logInterval != 0 {
		p.logger.Info("progress",
			logging.Int("done", p.done),
			logging.Int("total", p.total),
			logging.Int("failed", p.failed))
	}
}
