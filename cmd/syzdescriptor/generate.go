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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/internal/config"
	"github.com/kraklabs/syzdescriptor/internal/metrics"
	"github.com/kraklabs/syzdescriptor/internal/ui"
	"github.com/kraklabs/syzdescriptor/pkg/dispatch"
	"github.com/kraklabs/syzdescriptor/pkg/pipeline"
)

func runGenerate(g GlobalFlags, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "verbose debug logging")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	incremental := fs.Bool("incremental", false, "don't wipe the output directory before running")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *debug || g.Verbose > 0 {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	runID := uuid.New().String()
	logger = logger.With("run_id", runID)

	cfg, err := config.Load(configPath(g))
	if err != nil {
		return err
	}
	if err := config.ValidateSyscalls(cfg.Syscalls); err != nil {
		return err
	}

	addr := cfg.MetricsAddr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	batchMetrics := metrics.NewBatch()
	if addr != "" {
		go func() {
			if err := batchMetrics.Serve(ctx, addr); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	printer := ui.New(g.Verbose > 0, g.Quiet, g.NoColor)

	if !*incremental {
		if err := resetOutputDir(cfg.OutputDir); err != nil {
			return err
		}
	}

	db, err := codedb.LoadFixtureFile(cfg.CodeDBPath)
	if err != nil {
		return err
	}

	syscalls := make([]dispatch.Syscall, len(cfg.Syscalls))
	for i, s := range cfg.Syscalls {
		syscalls[i] = dispatch.Syscall{DispatchType: s.DispatchType, Slot: s.Slot}
	}

	summary, err := pipeline.Run(ctx, db, syscalls, today())
	if err != nil {
		return err
	}

	batchMetrics.HandlersDiscovered.Add(float64(len(summary.Outcomes)))
	bar := printer.NewBatchBar(len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		bar.Add(1)
		switch {
		case o.Discarded != "":
			batchMetrics.HandlersDiscarded.WithLabelValues(o.Discarded).Inc()
			printer.Warn("discarding handler %s: %s failed", o.Handler, o.Discarded)
		case o.Emitted:
			batchMetrics.HandlersEmitted.Inc()
			for _, p := range o.Skipped {
				batchMetrics.PassesSkipped.WithLabelValues(p).Inc()
				printer.Warn("skipping %s for handler %s: pass failed", p, o.Handler)
			}
		}
	}

	if err := writeArtifacts(cfg, summary); err != nil {
		return err
	}

	if g.JSON {
		return json.NewEncoder(os.Stdout).Encode(batchResult{RunID: runID, Outcomes: summary.Outcomes})
	}
	printer.Info("generated %d of %d handlers (run %s)", len(summary.Handlers), len(summary.Outcomes), runID)
	return nil
}

// batchResult is the --json output shape for one generate run: the
// outcomes alongside a run identifier that ties them back to this
// invocation's log lines, since the pipeline itself stays free of any
// notion of a "run" to keep its artifact output deterministic.
type batchResult struct {
	RunID    string             `json:"run_id"`
	Outcomes []pipeline.Outcome `json:"outcomes"`
}

// writeArtifacts writes each emitted handler's description and constants
// files, create-exclusive, into cfg.OutputDir (spec §6: "Files are
// written once, create-exclusive").
func writeArtifacts(cfg *config.Config, summary *pipeline.Summary) error {
	for _, rec := range summary.Handlers {
		arts, ok := summary.Artifacts[rec.Name]
		if !ok {
			continue
		}
		descPath, constPath := outputPaths(cfg.OutputDir, rec.Name, cfg.Architecture)
		if err := writeExclusive(descPath, arts.Description); err != nil {
			return err
		}
		if err := writeExclusive(constPath, arts.Constants); err != nil {
			return err
		}
	}
	return nil
}

func writeExclusive(path, contents string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()
	_, err = f.WriteString(contents)
	return err
}

func resetOutputDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("reset output dir: %w", err)
	}
	return os.MkdirAll(path, 0o755)
}

func outputPaths(outDir, handlerName, arch string) (descPath, constPath string) {
	return filepath.Join(outDir, handlerName+".txt"),
		filepath.Join(outDir, fmt.Sprintf("%s_%s.const", handlerName, arch))
}
