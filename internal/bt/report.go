package bt

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Notifier delivers a failure digest to a human. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// Reporter summarizes run results and routes failures to a Notifier.
type Reporter struct {
	logger    Logger
	notifier  Notifier
	showSizes bool
}

// NewReporter creates a Reporter. notifier may be nil.
// showSizes adds transferred/total byte counts to the summary; it is only
// meaningful when the content of every file is read during the run.
func NewReporter(logger Logger, notifier Notifier, showSizes bool) *Reporter {
	return &Reporter{logger: logger, notifier: notifier, showSizes: showSizes}
}

// Summary formats the one-line summary of result.
func (r *Reporter) Summary(result *RunResult) string {
	line := fmt.Sprintf("\t%d [new]\t%d [updated]\t%d [deleted]\t%d [errors]\t%d [skipped]",
		len(result.Added), len(result.Updated), len(result.Deleted), len(result.Errors), result.Skipped)
	if r.showSizes {
		line += fmt.Sprintf("\ttransferred %s of %s",
			humanize.IBytes(uint64(result.TransferredBytes())), humanize.IBytes(uint64(result.TotalBytes)))
	}
	if result.DryRun {
		line += "\t(dry run)"
	}
	return line
}

// Report logs the summary of result and, for a real run with errors,
// sends every error message to the notifier.
func (r *Reporter) Report(ctx context.Context, result *RunResult) {
	summary := r.Summary(result)
	name := result.Location.Name

	if !result.Failed() {
		r.logger.Info("Success: "+summary, "location", name, "duration", result.Duration)
		return
	}

	r.logger.Error("Failure: "+summary, "location", name, "duration", result.Duration)
	if result.DryRun {
		return
	}
	r.notify(ctx, FailureTitle(name, len(result.Errors)), strings.Join(result.Errors, "\n"))
}

// ReportFailure reports a location run that could not complete at all.
func (r *Reporter) ReportFailure(ctx context.Context, loc Location, err error, dryRun bool) {
	r.logger.Error("backup aborted", "location", loc.Name, "error", err)
	if dryRun {
		return
	}
	r.notify(ctx, fmt.Sprintf("Backup of '%s' aborted", loc.Name), err.Error())
}

func (r *Reporter) notify(ctx context.Context, title, body string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Send(ctx, title, body); err != nil {
		r.logger.Warn("sending notification failed", "error", err)
	}
}

// FailureTitle returns the notification title for a run with n errors.
func FailureTitle(name string, n int) string {
	noun := "errors"
	if n == 1 {
		noun = "error"
	}
	return fmt.Sprintf("Backup of '%s' finished with %d %s", name, n, noun)
}
