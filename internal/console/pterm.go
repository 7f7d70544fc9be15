package console

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
)

var _ Console = (*Pterm)(nil)

// Pterm is the terminal console. Leveled lines go through a pterm logger on
// stderr; artifacts and chat lines go to stdout so an envelope can be
// selected or piped without log decoration.
type Pterm struct {
	logger *pterm.Logger
	out    io.Writer
}

// NewPterm creates a console writing chat output to out and log lines to
// errOut. Debug lines are shown only when debug is set.
func NewPterm(out, errOut io.Writer, debug bool) *Pterm {
	logger := pterm.DefaultLogger
	logger.Writer = errOut
	logger.ShowTime = true
	logger.TimeFormat = "02 Jan 15:04:05"
	logger.MaxWidth = 1000
	logger.Level = pterm.LogLevelInfo
	if debug {
		logger.Level = pterm.LogLevelDebug
	}

	return &Pterm{logger: &logger, out: out}
}

// NewStd is NewPterm on the process's standard streams.
func NewStd(debug bool) *Pterm {
	return NewPterm(os.Stdout, os.Stderr, debug)
}

func (c *Pterm) Debugf(format string, args ...any) {
	c.logger.Debug(fmt.Sprintf(format, args...))
}

func (c *Pterm) Infof(format string, args ...any) {
	c.logger.Info(fmt.Sprintf(format, args...))
}

func (c *Pterm) Errorf(format string, args ...any) {
	c.logger.Error(fmt.Sprintf(format, args...))
}

func (c *Pterm) Printf(format string, args ...any) {
	pterm.Fprintln(c.out, fmt.Sprintf(format, args...))
}

// Artifact prints text undecorated between two blank lines.
func (c *Pterm) Artifact(text string) {
	pterm.Fprintln(c.out)
	pterm.Fprintln(c.out, text)
	pterm.Fprintln(c.out)
}

func (c *Pterm) Remotef(format string, args ...any) {
	pterm.Fprintln(c.out, pterm.FgLightBlue.Sprint(fmt.Sprintf(format, args...)))
}
