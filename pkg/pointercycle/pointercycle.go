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

// Package pointercycle implements the PointerCycleAnalyzer (spec §4.4):
// per command root, marks record fields whose pointer-deref loops back
// into the subgraph already being traversed.
package pointercycle

import (
	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/pkg/handler"
	"github.com/kraklabs/syzdescriptor/pkg/typegraph"
)

// Analyze walks the record graph rooted at each command, producing the
// per-type cycle markers consumed at emission time.
func Analyze(db codedb.DB, cmds *handler.Commands) *handler.PointerCycles {
	out := make(map[int][]handler.PointerCycle)
	for _, c := range cmds.Items {
		traversed := make(map[int]bool)
		walk(db, c.RootTypeID, traversed, out)
	}
	return &handler.PointerCycles{ByType: out}
}

func walk(db codedb.DB, t int, traversed map[int]bool, out map[int][]handler.PointerCycle) {
	head := typegraph.Detypedef(db, t)
	typ, ok := db.TypeByID(head)
	if !ok || typ.Class != codedb.ClassRecord {
		return // examine only record nodes
	}

	// head joins the ancestor set before its own fields are scanned, so a
	// field that points directly back at head (a depth-0 self-reference)
	// counts as a cycle, not just a field pointing at a strict proper
	// ancestor further up the chain.
	traversed[head] = true

	for i, ref := range typ.Refs {
		if !isPointerRef(db, ref) {
			continue
		}
		target := typegraph.Dereference(db, ref)
		if traversed[target] {
			out[head] = append(out[head], handler.PointerCycle{Target: target, FieldIndex: i})
		}
	}

	for _, ref := range typ.Refs {
		next := typegraph.Dereference(db, ref)
		if !traversed[next] {
			walk(db, next, traversed, out)
		}
	}
}

func isPointerRef(db codedb.DB, ref int) bool {
	head := typegraph.Detypedef(db, ref)
	t, ok := db.TypeByID(head)
	return ok && t.Class == codedb.ClassPointer
}
