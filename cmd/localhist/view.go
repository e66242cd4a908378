package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"localhist/internal/diff"
	"localhist/internal/history"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

// terminalViewer prints a colored unified diff from a revision to the live
// file.
type terminalViewer struct {
	out     io.Writer
	context int
}

func (v *terminalViewer) Compare(live, revision string) error {
	cur, err := os.ReadFile(live)
	if err != nil {
		return fmt.Errorf("reading %s: %w", live, err)
	}
	old, err := os.ReadFile(revision)
	if err != nil {
		return fmt.Errorf("reading revision: %w", err)
	}

	result := diff.NewEngine(v.context).Diff(old, cur)
	if result.Equal() {
		fmt.Fprintln(v.out, "No differences")
		return nil
	}

	fmt.Fprintf(v.out, "--- %s (revision)\n+++ %s\n", live, live)
	printColoredDiff(v.out, result.Format())
	fmt.Fprintf(v.out, "%d insertions(+), %d deletions(-)\n",
		result.Stats.Additions, result.Stats.Deletions)
	return nil
}

func printColoredDiff(out io.Writer, text string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			header.Fprintln(out, line)
		case strings.HasPrefix(line, "+"):
			added.Fprintln(out, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprintln(out, line)
		default:
			fmt.Fprintln(out, line)
		}
	}
}

// printRevisions writes one menu line per revision: index, token, date and
// age relative to now.
func printRevisions(out io.Writer, revs []history.Revision, now time.Time) {
	yellow := color.New(color.FgYellow).SprintFunc()
	for i, r := range revs {
		age := ""
		if t, err := r.Time(); err == nil {
			age = " (" + now.Sub(t).Truncate(time.Minute).String() + " ago)"
		}
		fmt.Fprintf(out, "%3d  %s  %s%s\n", i, yellow(r.Token()), r.Label(), age)
	}
}

// logReloader stands in for an editor buffer reload: there is no buffer
// to refresh from the command line.
type logReloader struct {
	logger *zap.Logger
}

func (r logReloader) Reload(file string) error {
	r.logger.Debug("file restored", zap.String("file", file))
	return nil
}
