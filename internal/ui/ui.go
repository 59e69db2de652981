// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui carries the ambient terminal-output helpers: verbosity-gated
// stderr logging, colorized status lines, and a batch progress bar. None
// of this is part of the analysis core (spec §1 names the CLI front end
// and logging as external collaborators); it is the surface the teacher
// codebase wraps every CLI command in.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Printer groups verbosity-gated output helpers for one CLI invocation.
type Printer struct {
	Verbose bool
	Quiet   bool
	colored bool
}

// New builds a Printer. Color is enabled only when stderr is a real
// terminal, matching the teacher's isatty-gated color policy.
func New(verbose, quiet, noColor bool) *Printer {
	return &Printer{
		Verbose: verbose,
		Quiet:   quiet,
		colored: !noColor && isatty.IsTerminal(os.Stderr.Fd()),
	}
}

func (p *Printer) Info(format string, args ...any) {
	if p.Quiet {
		return
	}
	fmt.Fprintln(os.Stderr, p.paint(color.FgCyan, "info")+"  "+fmt.Sprintf(format, args...))
}

func (p *Printer) Debug(format string, args ...any) {
	if p.Quiet || !p.Verbose {
		return
	}
	fmt.Fprintln(os.Stderr, p.paint(color.FgWhite, "debug")+" "+fmt.Sprintf(format, args...))
}

func (p *Printer) Warn(format string, args ...any) {
	if p.Quiet {
		return
	}
	fmt.Fprintln(os.Stderr, p.paint(color.FgYellow, "warn")+"  "+fmt.Sprintf(format, args...))
}

func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(os.Stderr, p.paint(color.FgRed, "error")+" "+fmt.Sprintf(format, args...))
}

func (p *Printer) paint(attr color.Attribute, s string) string {
	if !p.colored {
		return s
	}
	return color.New(attr).Sprint(s)
}

// NewBatchBar returns a progress bar over total handlers, or a no-op bar
// when quiet or total is zero.
func (p *Printer) NewBatchBar(total int) *progressbar.ProgressBar {
	if p.Quiet || total == 0 {
		return progressbar.DefaultBytesSilent(0)
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("generating"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
