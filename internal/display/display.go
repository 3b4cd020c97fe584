// internal/display/display.go

// Package display is the narration sink for command output: short info,
// success and error lines, separate from structured logging.
package display

import (
	"fmt"
	"io"
	"os"
)

// Printer writes user-facing progress lines. Info and Success go to stdout,
// Error to stderr.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New returns a Printer bound to the process streams.
func New() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr}
}

// Infof prints an informational line.
func (p *Printer) Infof(format string, a ...any) {
	fmt.Fprintf(p.Out, "  "+format+"\n", a...)
}

// Successf prints a success line.
func (p *Printer) Successf(format string, a ...any) {
	fmt.Fprintf(p.Out, "✓ "+format+"\n", a...)
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, a ...any) {
	fmt.Fprintf(p.Err, "✗ "+format+"\n", a...)
}
