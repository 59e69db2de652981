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

// Package typegraph implements the TypeGraphAnalyzer (spec §4.3): from
// each command root, computes the set of transitively referenced concrete
// (non-typedef, non-pointer) type ids.
package typegraph

import (
	"sort"

	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/pkg/handler"
)

// Detypedef follows typedef.refs[0] until the head is not a typedef.
func Detypedef(db codedb.DB, id int) int {
	for {
		t, ok := db.TypeByID(id)
		if !ok || t.Class != codedb.ClassTypedef || len(t.Refs) == 0 {
			return id
		}
		id = t.Refs[0]
	}
}

// Dereference follows both typedef and pointer indirection until neither
// applies.
func Dereference(db codedb.DB, id int) int {
	for {
		id = Detypedef(db, id)
		t, ok := db.TypeByID(id)
		if !ok || t.Class != codedb.ClassPointer || len(t.Refs) == 0 {
			return id
		}
		id = t.Refs[0]
	}
}

// HasFields reports whether id, after typedef collapse, carries any
// field/element/pointee references.
func HasFields(db codedb.DB, id int) bool {
	head := Detypedef(db, id)
	t, ok := db.TypeByID(head)
	return ok && len(t.Refs) > 0
}

// Closure performs a DFS from dereference(t): record and array nodes
// recurse into their refs, enum and builtin nodes are DFS leaves. Entry
// collapses both typedefs and pointers (not just typedefs) so a pointer
// field lands directly on its pointee rather than on an intermediate
// pointer-type id — required for I1 ("deps contains only non-typedef,
// non-pointer concrete ids") and pinned by spec §8 Scenario 3, where a
// self-referential "struct node { node *next; ... }" must close to
// exactly {node}, not {node, pointer-to-node}.
//
// visited is shared across calls so repeated invocations accumulate a
// single DFS-wide visited set (spec §4.3's "not per-root" rule).
func Closure(db codedb.DB, t int, visited map[int]bool) {
	head := Dereference(db, t)
	if visited[head] {
		return
	}
	visited[head] = true

	typ, ok := db.TypeByID(head)
	if !ok {
		return
	}
	switch typ.Class {
	case codedb.ClassRecord, codedb.ClassConstArray, codedb.ClassIncompleteArray:
		for _, ref := range typ.Refs {
			Closure(db, ref, visited)
		}
	}
}

// Analyze computes deps for a handler whose Commands payload is already
// filled: the union, over every command root, of Closure(t) filtered to
// HasFields, sorted by type id for deterministic emission (spec §8, §9
// Open Question (b)).
func Analyze(db codedb.DB, cmds *handler.Commands) *handler.Deps {
	visited := make(map[int]bool)
	for _, c := range cmds.Items {
		Closure(db, c.RootTypeID, visited)
	}

	var ids []int
	for id := range visited {
		if HasFields(db, id) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return &handler.Deps{TypeIDs: ids}
}
