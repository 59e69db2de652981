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
	"time"

	"github.com/fsnotify/fsnotify"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/syzdescriptor/internal/config"
	"github.com/kraklabs/syzdescriptor/internal/ui"
)

// watchDebounce coalesces bursts of filesystem events into one re-run,
// matching the teacher's cmd/cie/watch.go debounce window.
const watchDebounce = 2 * time.Second

func runWatch(g GlobalFlags, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	printer := ui.New(g.Verbose > 0, g.Quiet, g.NoColor)

	cfg, err := config.Load(configPath(g))
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.CodeDBPath); err != nil {
		return fmt.Errorf("watch: add %s: %w", cfg.CodeDBPath, err)
	}

	printer.Info("watching %s for changes", cfg.CodeDBPath)

	var timer *time.Timer
	runOnce := func() {
		printer.Info("codedb changed, regenerating")
		if err := runGenerate(g, nil); err != nil {
			printer.Error("generate failed: %v", err)
		}
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, runOnce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printer.Error("watch error: %v", err)
		}
	}
}
