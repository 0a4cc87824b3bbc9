package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dvmn-mentors/mentor-relay/internal/application/command"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	faint  = color.New(color.Faint)
)

func success(w io.Writer, format string, args ...any) {
	green.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func warning(w io.Writer, format string, args ...any) {
	yellow.Fprint(w, "! ")
	fmt.Fprintf(w, format+"\n", args...)
}

func failure(w io.Writer, format string, args ...any) {
	red.Fprint(w, "✗ ")
	fmt.Fprintf(w, format+"\n", args...)
}

// printBatchSummary writes a one-line tally of a send-plans run.
func printBatchSummary(w io.Writer, s command.BatchSummary) {
	tally := fmt.Sprintf("%d sent, %d duplicate, %d failed, %d skipped", s.Sent, s.Duplicates, s.Failed, s.Skipped)
	switch {
	case s.Failed > 0:
		failure(w, "%s %s", tally, faint.Sprint("run "+s.RunID))
	case s.Duplicates > 0 || s.Skipped > 0:
		warning(w, "%s %s", tally, faint.Sprint("run "+s.RunID))
	default:
		success(w, "%s %s", tally, faint.Sprint("run "+s.RunID))
	}
}
