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

package main

import (
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/syzdescriptor/internal/config"
	"github.com/kraklabs/syzdescriptor/internal/ui"
)

func runInit(g GlobalFlags, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	codedbPath := fs.String("codedb", "./codedb.json", "path to the CodeDB dump")
	force := fs.Bool("force", false, "overwrite an existing project.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	printer := ui.New(g.Verbose > 0, g.Quiet, g.NoColor)

	path := configPath(g)
	if !*force {
		if _, err := readIfExists(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	cfg := config.DefaultConfig(*codedbPath)
	if err := config.Write(path, cfg); err != nil {
		return err
	}

	printer.Info("wrote %s", path)
	return nil
}

func configPath(g GlobalFlags) string {
	if g.ConfigPath != "" {
		return g.ConfigPath
	}
	return filepath.Join(config.Dir, config.FileName)
}
