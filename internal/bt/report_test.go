package bt_test

import (
	"context"
	"errors"
	"testing"

	"msync/internal/bt"
	"msync/internal/testutil"
)

func TestReporter_Summary(t *testing.T) {
	result := &bt.RunResult{
		Added:        []string{"/a", "/b"},
		Updated:      []string{"/c"},
		Deleted:      []string{"/d", "/e", "/f"},
		Errors:       []string{"boom"},
		Skipped:      7,
		AddedBytes:   1024,
		UpdatedBytes: 1024,
		TotalBytes:   4096,
	}

	tests := []struct {
		name      string
		showSizes bool
		dryRun    bool
		want      string
	}{
		{
			name: "counts only",
			want: "\t2 [new]\t1 [updated]\t3 [deleted]\t1 [errors]\t7 [skipped]",
		},
		{
			name:      "with sizes",
			showSizes: true,
			want:      "\t2 [new]\t1 [updated]\t3 [deleted]\t1 [errors]\t7 [skipped]\ttransferred 2.0 KiB of 4.0 KiB",
		},
		{
			name:   "dry run",
			dryRun: true,
			want:   "\t2 [new]\t1 [updated]\t3 [deleted]\t1 [errors]\t7 [skipped]\t(dry run)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bt.NewReporter(bt.NewNopLogger(), nil, tt.showSizes)
			res := *result
			res.DryRun = tt.dryRun
			if got := r.Summary(&res); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReporter_Report(t *testing.T) {
	tests := []struct {
		name       string
		errors     []string
		dryRun     bool
		wantLevel  string
		wantPrefix string
		wantSent   int
	}{
		{name: "success", wantLevel: "INFO", wantPrefix: "Success:"},
		{name: "failure", errors: []string{"e1", "e2"}, wantLevel: "ERROR", wantPrefix: "Failure:", wantSent: 1},
		{name: "dry run failure", errors: []string{"e1"}, dryRun: true, wantLevel: "ERROR", wantPrefix: "Failure:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &testutil.RecordingLogger{}
			notifier := &testutil.RecordingNotifier{}
			r := bt.NewReporter(logger, notifier, false)

			r.Report(context.Background(), &bt.RunResult{
				Location: bt.Location{Name: "photos", Root: "/photos"},
				Errors:   tt.errors,
				DryRun:   tt.dryRun,
			})

			if !logger.Contains(tt.wantLevel, tt.wantPrefix) {
				t.Errorf("missing %s %q log line:\n%s", tt.wantLevel, tt.wantPrefix, logger)
			}
			sent := notifier.Sent()
			if len(sent) != tt.wantSent {
				t.Fatalf("sent %d notifications, want %d", len(sent), tt.wantSent)
			}
			if tt.wantSent > 0 {
				if sent[0].Title != "Backup of 'photos' finished with 2 errors" {
					t.Errorf("title = %q", sent[0].Title)
				}
				if sent[0].Body != "e1\ne2" {
					t.Errorf("body = %q", sent[0].Body)
				}
			}
		})
	}
}

func TestReporter_NotifierFailureIsLogged(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	notifier := &testutil.RecordingNotifier{Err: errors.New("webhook down")}
	r := bt.NewReporter(logger, notifier, false)

	r.Report(context.Background(), &bt.RunResult{Errors: []string{"e1"}})

	if !logger.Contains("WARN", "sending notification failed") {
		t.Errorf("notifier failure not logged:\n%s", logger)
	}
}

func TestReporter_ReportFailure(t *testing.T) {
	loc := bt.Location{Name: "photos", Root: "/photos"}

	t.Run("notifies", func(t *testing.T) {
		notifier := &testutil.RecordingNotifier{}
		r := bt.NewReporter(bt.NewNopLogger(), notifier, false)

		r.ReportFailure(context.Background(), loc, errors.New("root missing"), false)

		sent := notifier.Sent()
		if len(sent) != 1 {
			t.Fatalf("sent %d notifications, want 1", len(sent))
		}
		if sent[0].Title != "Backup of 'photos' aborted" || sent[0].Body != "root missing" {
			t.Errorf("notification = %+v", sent[0])
		}
	})

	t.Run("dry run stays quiet", func(t *testing.T) {
		notifier := &testutil.RecordingNotifier{}
		r := bt.NewReporter(bt.NewNopLogger(), notifier, false)

		r.ReportFailure(context.Background(), loc, errors.New("root missing"), true)

		if len(notifier.Sent()) != 0 {
			t.Error("dry run sent a notification")
		}
	})

	t.Run("nil notifier", func(t *testing.T) {
		r := bt.NewReporter(bt.NewNopLogger(), nil, false)
		r.ReportFailure(context.Background(), loc, errors.New("root missing"), false)
	})
}

func TestFailureTitle(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "Backup of 'photos' finished with 1 error"},
		{2, "Backup of 'photos' finished with 2 errors"},
		{0, "Backup of 'photos' finished with 0 errors"},
	}
	for _, tt := range tests {
		if got := bt.FailureTitle("photos", tt.n); got != tt.want {
			t.Errorf("FailureTitle(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
