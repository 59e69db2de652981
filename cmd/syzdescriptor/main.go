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

// Command syzdescriptor synthesizes fuzzer interface descriptions for
// kernel drivers from a pre-built CodeDB dump.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/syzdescriptor/internal/errors"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GlobalFlags are the flags accepted before the subcommand name, mirroring
// the teacher's cmd/cie/main.go GlobalFlags struct.
type GlobalFlags struct {
	ShowVersion bool
	ConfigPath  string
	JSON        bool
	NoColor     bool
	Verbose     int
	Quiet       bool
}

func main() {
	flag.CommandLine.SetInterspersed(false)

	var g GlobalFlags
	flag.BoolVarP(&g.ShowVersion, "version", "V", false, "print version and exit")
	flag.StringVarP(&g.ConfigPath, "config", "c", "", "path to .syzdescriptor/project.yaml")
	flag.BoolVar(&g.JSON, "json", false, "emit machine-readable JSON output")
	flag.BoolVar(&g.NoColor, "no-color", false, "disable colored output")
	flag.CountVarP(&g.Verbose, "verbose", "v", "increase verbosity")
	flag.BoolVarP(&g.Quiet, "quiet", "q", false, "suppress non-error output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `syzdescriptor - generate fuzzer interface descriptions from a CodeDB dump

Usage:
  syzdescriptor [global flags] <command> [command flags]

Commands:
  init       write a default .syzdescriptor/project.yaml
  generate   run the analysis pipeline once and emit description files
  status     report the outcome of the last generate run
  watch      re-run generate whenever the CodeDB dump changes

Global flags:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if g.ShowVersion {
		fmt.Printf("syzdescriptor %s (%s, built %s)\n", version, commit, date)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "init":
		err = runInit(g, rest)
	case "generate":
		err = runGenerate(g, rest)
	case "status":
		err = runStatus(g, rest)
	case "watch":
		err = runWatch(g, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		errors.FatalError(err, g.JSON)
	}
}
