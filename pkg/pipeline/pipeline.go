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

// Package pipeline implements the driver (spec §4.7): runs the fixed pass
// sequence over every discovered handler, isolating failures per the
// fixed fail-policy table, and collects a batch summary.
//
// The fixed ordered []passConfig{pass, policy} slice is grounded on
// original_source/driver.py's self.passes = [(Pass(), bool), ...] list of
// tuples; signal-aware cancellation at handler boundaries is grounded on
// the teacher's cmd/cie/index.go batch-run loop.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/kraklabs/syzdescriptor/internal/codedb"
	syzerrors "github.com/kraklabs/syzdescriptor/internal/errors"
	"github.com/kraklabs/syzdescriptor/pkg/dispatch"
	"github.com/kraklabs/syzdescriptor/pkg/emitter"
	"github.com/kraklabs/syzdescriptor/pkg/handler"
	"github.com/kraklabs/syzdescriptor/pkg/ioctlscan"
	"github.com/kraklabs/syzdescriptor/pkg/namebook"
	"github.com/kraklabs/syzdescriptor/pkg/pointerbounds"
	"github.com/kraklabs/syzdescriptor/pkg/pointercycle"
	"github.com/kraklabs/syzdescriptor/pkg/typegraph"
)

// FailPolicy names what happens to a handler when a pass's Process
// returns false (spec §4.7).
type FailPolicy int

const (
	// Discard drops the handler entirely and moves to the next one.
	Discard FailPolicy = iota
	// Skip keeps the handler but skips the rest of this pass's output.
	Skip
)

// Pass is the single-method contract every stage implements (spec §9's
// "pass polymorphism" design note): mutate rec in place, report success.
type Pass interface {
	Name() string
	Process(db codedb.DB, rec *handler.Record) bool
}

// passConfig pairs a Pass with the fail-policy the driver applies to it,
// held alongside the pass rather than on it (spec §9).
type passConfig struct {
	pass   Pass
	policy FailPolicy
}

// Outcome records one handler's fate for the batch summary.
type Outcome struct {
	Handler string
	Emitted bool
	// Discarded is the pass name that caused this handler to be dropped,
	// or "" if it was emitted.
	Discarded string
	// Skipped lists pass names that failed under a skip policy but kept
	// the handler alive.
	Skipped []string
}

// Summary is the batch-level result returned to the caller.
type Summary struct {
	Outcomes []Outcome
	Handlers []*handler.Record // successfully emitted, in stable order
	Artifacts map[string]emitter.Artifacts
}

// defaultPasses is the fixed ordered sequence and fail-policy from spec
// §4.7.
func defaultPasses() []passConfig {
	return []passConfig{
		{pass: ioctlPass{}, policy: Discard},
		{pass: typeGraphPass{}, policy: Discard},
		{pass: pointerCyclePass{}, policy: Skip},
		{pass: pointerBoundsPass{}, policy: Skip},
	}
}

// Run executes DispatchCollector then the fixed pass sequence over every
// discovered handler, emitting artifacts for survivors. ctx cancellation
// is checked at handler boundaries (spec §5's cooperative cancellation).
func Run(ctx context.Context, db codedb.DB, syscalls []dispatch.Syscall, today string) (*Summary, error) {
	records, err := dispatch.Collect(db, syscalls)
	if err != nil {
		return nil, err
	}

	book := namebook.New()
	em := emitter.New(db, book, today)
	passes := defaultPasses()

	summary := &Summary{Artifacts: make(map[string]emitter.Artifacts)}

	for _, rec := range records {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		outcome, err := runHandler(db, rec, passes, em)
		if err != nil {
			return summary, err
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Emitted {
			summary.Handlers = append(summary.Handlers, rec)
		}
	}

	sort.Slice(summary.Handlers, func(i, j int) bool {
		return summary.Handlers[i].Name < summary.Handlers[j].Name
	})

	for _, rec := range summary.Handlers {
		arts, err := em.Emit(rec)
		if err != nil {
			return summary, syzerrors.Failure("Emitter", err)
		}
		summary.Artifacts[rec.Name] = arts
	}

	return summary, nil
}

func runHandler(db codedb.DB, rec *handler.Record, passes []passConfig, em *emitter.Emitter) (Outcome, error) {
	outcome := Outcome{Handler: rec.Name}

	for _, pc := range passes {
		var ok bool
		var panicked any
		func() {
			defer func() { panicked = recover() }()
			ok = pc.pass.Process(db, rec)
		}()
		if panicked != nil {
			return outcome, syzerrors.Failure(pc.pass.Name(), fmt.Errorf("panic: %v", panicked))
		}
		if ok {
			continue
		}
		switch pc.policy {
		case Discard:
			outcome.Discarded = pc.pass.Name()
			return outcome, nil
		case Skip:
			outcome.Skipped = append(outcome.Skipped, pc.pass.Name())
		}
	}

	outcome.Emitted = true
	return outcome, nil
}

// --- pass adapters ---

type ioctlPass struct{}

func (ioctlPass) Name() string { return "IoctlAnalyzer" }
func (ioctlPass) Process(db codedb.DB, rec *handler.Record) bool {
	cmds, ok := ioctlscan.Analyze(db, rec.SyscallID)
	if !ok {
		return false
	}
	rec.SetCommands(cmds)
	return true
}

type typeGraphPass struct{}

func (typeGraphPass) Name() string { return "TypeGraphAnalyzer" }
func (typeGraphPass) Process(db codedb.DB, rec *handler.Record) bool {
	cmds, ok := rec.Commands()
	if !ok {
		return false // PrerequisiteMissing, treated as pass failure under discard policy
	}
	rec.SetDeps(typegraph.Analyze(db, cmds))
	return true
}

type pointerCyclePass struct{}

func (pointerCyclePass) Name() string { return "PointerCycleAnalyzer" }
func (pointerCyclePass) Process(db codedb.DB, rec *handler.Record) bool {
	cmds, ok := rec.Commands()
	if !ok {
		return false
	}
	rec.SetPointerCycles(pointercycle.Analyze(db, cmds))
	return true
}

type pointerBoundsPass struct{}

func (pointerBoundsPass) Name() string { return "PointerBoundsAnalyzer" }
func (pointerBoundsPass) Process(db codedb.DB, rec *handler.Record) bool {
	rec.SetPointerBounds(pointerbounds.Analyze(db, rec.SyscallID))
	return true
}
