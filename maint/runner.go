// Package maint holds the operator maintenance tasks that inspect and
// repair CMS content, either directly against the SQLite file or through
// the CMS REST API.
//
// Every task goes through Runner.RunOnce, which gives them the same shape:
// an optional idempotency check, one output line per unit of work, per-item
// failures that never stop the batch, and a closing summary.
package maint

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// CheckFunc reports whether a task has already been applied. A non-nil
// error is fatal for the run.
type CheckFunc func(ctx context.Context) (applied bool, reason string, err error)

// ActionFunc performs a task, recording each item on the report. A non-nil
// error is fatal for the run; per-item problems go to Report.Fail instead.
type ActionFunc func(ctx context.Context, r *Report) error

// Task is a named maintenance operation.
type Task struct {
	Name   string
	Short  string
	Check  CheckFunc
	Action ActionFunc
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
)

// Runner executes tasks and writes their reports.
type Runner struct {
	Out    io.Writer
	Err    io.Writer
	DryRun bool
}

// NewRunner returns a Runner writing to stdout and stderr.
func NewRunner() *Runner {
	return &Runner{Out: os.Stdout, Err: os.Stderr}
}

// Run executes t.
func (rn *Runner) Run(ctx context.Context, t Task) (*Report, error) {
	return rn.RunOnce(ctx, t.Name, t.Check, t.Action)
}

// RunOnce runs action unless check says the work is already done.
func (rn *Runner) RunOnce(ctx context.Context, name string, check CheckFunc, action ActionFunc) (*Report, error) {
	r := &Report{Name: name, DryRun: rn.DryRun, out: rn.Out, errOut: rn.Err}
	if rn.DryRun {
		fmt.Fprintf(rn.Out, "%s %s\n", cyan.Sprint("[DRY RUN]"), name)
	} else {
		fmt.Fprintf(rn.Out, "%s\n", name)
	}

	if check != nil {
		applied, reason, err := check(ctx)
		if err != nil {
			return r, rn.fatal(name, err)
		}
		if applied {
			r.Skip("%s", reason)
			r.summary()
			return r, nil
		}
	}

	if err := action(ctx, r); err != nil {
		return r, rn.fatal(name, err)
	}
	r.summary()
	return r, nil
}

func (rn *Runner) fatal(name string, err error) error {
	fmt.Fprintf(rn.Err, "%s %s: %v\n", red.Sprint("✗"), name, err)
	return fmt.Errorf("%s: %w", name, err)
}

// Failure is one item that could not be processed.
type Failure struct {
	Item string
	Err  error
}

// Report collects per-item outcomes of one run. Every recording method
// prints its line immediately so output order matches processing order.
type Report struct {
	Name      string
	DryRun    bool
	Succeeded int
	Skipped   int
	Failed    int
	Listed    int
	Failures  []Failure

	out    io.Writer
	errOut io.Writer
}

// Success records an item that was processed.
func (r *Report) Success(format string, args ...any) {
	r.Succeeded++
	fmt.Fprintf(r.out, "%s %s\n", green.Sprint("✓"), fmt.Sprintf(format, args...))
}

// Skip records an item that needed no work or was left alone.
func (r *Report) Skip(format string, args ...any) {
	r.Skipped++
	fmt.Fprintf(r.out, "%s %s\n", yellow.Sprint("-"), fmt.Sprintf(format, args...))
}

// Fail records an item that failed. Processing continues with the next item.
func (r *Report) Fail(item string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{Item: item, Err: err})
	fmt.Fprintf(r.errOut, "%s %s: %v\n", red.Sprint("✗"), item, err)
}

// Line prints one listed record.
func (r *Report) Line(format string, args ...any) {
	r.Listed++
	fmt.Fprintf(r.out, "  %s\n", fmt.Sprintf(format, args...))
}

// Note prints a line that is not a unit of work, such as a heading or a total.
func (r *Report) Note(format string, args ...any) {
	fmt.Fprintf(r.out, "%s\n", fmt.Sprintf(format, args...))
}

func (r *Report) summary() {
	s := fmt.Sprintf("%d ok, %d skipped, %d failed", r.Succeeded, r.Skipped, r.Failed)
	if r.Listed > 0 {
		s = fmt.Sprintf("%d listed, %s", r.Listed, s)
	}
	fmt.Fprintf(r.out, "%s: %s\n", r.Name, s)
}
