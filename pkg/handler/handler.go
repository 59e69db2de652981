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

// Package handler defines the per-dispatch-table-instance record that
// flows through the pipeline (spec §3, §9). Each stage's output is an
// explicit optional payload rather than a shared mutable bag: an accessor
// reports a missing payload as (nil, false) instead of handing back a nil
// map. The pipeline treats a missing predecessor payload as a failure of
// the reading pass under that pass's fail policy; no PrerequisiteMissing
// error is raised for it.
package handler

// Command is one (label, numeric value, root type) tuple mined by the
// IoctlAnalyzer.
type Command struct {
	Label       string
	Value       int64
	RootTypeID  int
}

// PointerCycle records that a record field's dereferenced pointee lies on
// the DFS ancestor chain (spec I4).
type PointerCycle struct {
	Target     int
	FieldIndex int
}

// MemberBounds records a (length, pointer) field pairing detected at a
// user-copy callsite (spec I5).
type MemberBounds struct {
	BindingMember int
	BoundMember   int
}

// Commands is the IoctlAnalyzer's output payload.
type Commands struct {
	Items []Command
}

// Deps is the TypeGraphAnalyzer's output payload: the acyclic dependency
// closure, kept sorted by type id for deterministic emission (spec §8).
type Deps struct {
	TypeIDs []int
}

// PointerCycles is the PointerCycleAnalyzer's output payload.
type PointerCycles struct {
	ByType map[int][]PointerCycle
}

// PointerBounds is the PointerBoundsAnalyzer's output payload.
type PointerBounds struct {
	ByType map[int]map[MemberBounds]struct{}
}

// Record is one discovered dispatch-table handler, filled progressively by
// the pipeline's passes.
type Record struct {
	Name      string
	SyscallID int

	commands      *Commands
	deps          *Deps
	pointerCycles *PointerCycles
	pointerBounds *PointerBounds
}

// New creates a bare record with only the fields DispatchCollector fills.
func New(name string, syscallID int) *Record {
	return &Record{Name: name, SyscallID: syscallID}
}

// SetCommands installs the IoctlAnalyzer's payload.
func (r *Record) SetCommands(c *Commands) { r.commands = c }

// Commands returns the IoctlAnalyzer's payload, if present.
func (r *Record) Commands() (*Commands, bool) {
	if r.commands == nil {
		return nil, false
	}
	return r.commands, true
}

// SetDeps installs the TypeGraphAnalyzer's payload.
func (r *Record) SetDeps(d *Deps) { r.deps = d }

// Deps returns the TypeGraphAnalyzer's payload, if present.
func (r *Record) Deps() (*Deps, bool) {
	if r.deps == nil {
		return nil, false
	}
	return r.deps, true
}

// SetPointerCycles installs the PointerCycleAnalyzer's payload.
func (r *Record) SetPointerCycles(p *PointerCycles) { r.pointerCycles = p }

// PointerCycles returns the PointerCycleAnalyzer's payload, if present.
func (r *Record) PointerCycles() (*PointerCycles, bool) {
	if r.pointerCycles == nil {
		return nil, false
	}
	return r.pointerCycles, true
}

// SetPointerBounds installs the PointerBoundsAnalyzer's payload.
func (r *Record) SetPointerBounds(p *PointerBounds) { r.pointerBounds = p }

// PointerBounds returns the PointerBoundsAnalyzer's payload, if present.
func (r *Record) PointerBounds() (*PointerBounds, bool) {
	if r.pointerBounds == nil {
		return nil, false
	}
	return r.pointerBounds, true
}
