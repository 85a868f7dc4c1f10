package provision

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const (
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[0;33m"
	colorRed    = "\033[0;31m"
	colorReset  = "\033[0m"
)

// Reporter prints operator-facing progress lines. Action lines mark a step
// being attempted, Info lines carry context, Error lines name the failed
// action. Colors are dropped when stdout is not a terminal.
type Reporter struct {
	out   io.Writer
	color bool
}

// NewReporter returns a reporter writing to stdout.
func NewReporter() *Reporter {
	return &Reporter{
		out:   os.Stdout,
		color: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// NewReporterTo returns a reporter writing to w without colors.
func NewReporterTo(w io.Writer) *Reporter {
	return &Reporter{out: w}
}

func (r *Reporter) line(marker, color, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if r.color {
		fmt.Fprintf(r.out, "%s%s%s %s\n", color, marker, colorReset, msg)
	} else {
		fmt.Fprintf(r.out, "%s %s\n", marker, msg)
	}
}

// Action reports a step being performed.
func (r *Reporter) Action(format string, args ...interface{}) {
	r.line("[+]", colorGreen, format, args...)
}

// Info reports supplementary context.
func (r *Reporter) Info(format string, args ...interface{}) {
	r.line("[~]", colorYellow, format, args...)
}

// Error reports a failed action.
func (r *Reporter) Error(format string, args ...interface{}) {
	r.line("[!]", colorRed, format, args...)
}
