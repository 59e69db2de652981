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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/syzdescriptor/internal/config"
)

func runStatus(g GlobalFlags, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath(g))
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("status: read %s: %w", cfg.OutputDir, err)
	}

	var descriptions, constants int
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".txt":
			descriptions++
		case ".const":
			constants++
		}
	}

	if g.JSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]int{
			"descriptions": descriptions,
			"constants":    constants,
		})
	}
	fmt.Printf("%s: %d descriptions, %d constants files\n", cfg.OutputDir, descriptions, constants)
	return nil
}
