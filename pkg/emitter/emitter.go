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

// Package emitter implements the Emitter (spec §4.6): builds the
// declaration tree for one handler and renders it as a constants file and
// a description file in the fixed description-language grammar (spec §6).
//
// The declaration-node-per-struct style is grounded on the entity-struct
// layout of the teacher's pkg/ingestion/schema.go, adapted from "entity
// struct with a doc comment" to "declaration struct with a String()
// method" since rendering fixed textual tokens has no direct teacher
// precedent; token ordering is cross-checked against
// original_source/syzdescriptor/syzlang.py's BaseDeclaration hierarchy.
package emitter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/pkg/handler"
	"github.com/kraklabs/syzdescriptor/pkg/namebook"
)

// Emitter holds the batch-global state the description-language rendering
// consults: the CodeDB, the NameBook, and the per-type name assignments
// (spec §5: both are append-only, consulted deterministically across the
// whole batch).
type Emitter struct {
	db        codedb.DB
	book      *namebook.Book
	typeNames map[int]string
	today     string // pre-formatted date string for the header comment
}

// New builds an Emitter sharing one NameBook across every handler in a
// batch (spec §4.6's name-uniquification domains are batch-global).
func New(db codedb.DB, book *namebook.Book, today string) *Emitter {
	return &Emitter{
		db:        db,
		book:      book,
		typeNames: make(map[int]string),
		today:     today,
	}
}

// Artifacts is the pair of text files produced per handler (spec §6).
type Artifacts struct {
	Description string
	Constants   string
}

// Emit renders both artifacts for rec. rec's Commands, Deps,
// PointerCycles and PointerBounds payloads are consulted if present;
// PointerCycles/PointerBounds may be absent (their pass is skip-on-fail).
func (e *Emitter) Emit(rec *handler.Record) (Artifacts, error) {
	cmds, ok := rec.Commands()
	if !ok {
		return Artifacts{}, fmt.Errorf("emitter: handler %s has no commands", rec.Name)
	}
	deps, ok := rec.Deps()
	if !ok {
		return Artifacts{}, fmt.Errorf("emitter: handler %s has no deps", rec.Name)
	}

	var cycles map[int][]handler.PointerCycle
	if pc, ok := rec.PointerCycles(); ok {
		cycles = pc.ByType
	}
	var bounds map[int]map[handler.MemberBounds]struct{}
	if pb, ok := rec.PointerBounds(); ok {
		bounds = pb.ByType
	}

	labels := e.uniquifyLabels(cmds.Items)

	constants := e.renderConstants(labels, cmds.Items)
	description := e.renderDescription(rec, labels, cmds.Items, deps.TypeIDs, cycles, bounds)

	return Artifacts{Description: description, Constants: constants}, nil
}

// uniquifyLabels uniquifies every command's label against the batch-global
// label arena and returns the assigned label per command index, in
// command order (spec §4.6's constants-file uniquification rule).
func (e *Emitter) uniquifyLabels(cmds []handler.Command) []string {
	labels := make([]string, len(cmds))
	for i, c := range cmds {
		labels[i] = e.book.Label(c.Label)
	}
	return labels
}

func (e *Emitter) renderConstants(labels []string, cmds []handler.Command) string {
	var b strings.Builder
	for i, c := range cmds {
		fmt.Fprintf(&b, "%s_syzdescriptor = %d\n", labels[i], c.Value)
	}
	return b.String()
}

func (e *Emitter) renderDescription(
	rec *handler.Record,
	labels []string,
	cmds []handler.Command,
	deps []int,
	cycles map[int][]handler.PointerCycle,
	bounds map[int]map[handler.MemberBounds]struct{},
) string {
	var b strings.Builder

	pathConst := e.book.PathConstant(fmt.Sprintf("SYZDESCRIPTOR_PATH_%d", rec.SyscallID))

	fmt.Fprintf(&b, "# Generated by syzdescriptor on %s\n", e.today)
	fmt.Fprintf(&b, "# Path constant is: %s\n", pathConst)
	fmt.Fprintf(&b, "# Anchor function ID is: %d\n", rec.SyscallID)
	b.WriteString("include <linux/ioctl.h>\n")
	b.WriteString("include <linux/types.h>\n")
	fmt.Fprintf(&b, "resource fd_%s[fd]\n\n", rec.Name)

	fmt.Fprintf(&b, "openat$%s_syzdescriptor(fd const[AT_FDCWD], file ptr[in, string[%s_syzdescriptor]], flags flags[open_flags], mode const[0]) fd_%s\n",
		rec.Name, pathConst, rec.Name)

	for i, c := range cmds {
		arg := e.argumentDecl(c.RootTypeID)
		fmt.Fprintf(&b, "ioctl$%s_syzdescriptor(fd fd_%s, cmd const[%s_syzdescriptor], arg %s)\n",
			labels[i], rec.Name, labels[i], arg)
	}

	b.WriteString("\n")

	sortedDeps := append([]int(nil), deps...)
	sort.Ints(sortedDeps)
	for _, typeID := range sortedDeps {
		def := e.renderTypeDefinition(typeID, cycles, bounds)
		if def != "" {
			b.WriteString(def)
		}
	}

	return b.String()
}

// argumentDecl renders an ioctl's "arg" parameter: the root type's own
// declaration if it is already a pointer, otherwise wrapped in
// ptr[inout, ...] since the kernel side always receives a userspace
// pointer for this argument (spec §8 Scenario 1).
func (e *Emitter) argumentDecl(rootTypeID int) Decl {
	t, ok := e.db.TypeByID(rootTypeID)
	if !ok {
		return EmptyDecl{}
	}
	base := e.declarationFor(rootTypeID, false)
	if t.Class == codedb.ClassPointer {
		return base
	}
	return PointerDecl{Inner: base}
}
