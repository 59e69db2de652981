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

// Package pointerbounds implements the PointerBoundsAnalyzer (spec §4.5):
// detects record-field pairs used together as (pointer, length) at
// user-copy callsites, by walking the static callgraph from a handler's
// entry function.
//
// The bounded callgraph DFS is grounded on the teacher's
// pkg/tools/trace.go BFS/DFS tracer: an explicit depth cap plus a
// per-traversal visited set, adapted here to walk call sites instead of
// tracing a path between two named functions.
package pointerbounds

import (
	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/pkg/handler"
)

// maxDepth bounds the callgraph DFS; the entry function counts as depth 1
// (spec §4.5, §5).
const maxDepth = 4

// maxOffsetHops bounds the offsetref chain walk toward a member-kind
// deref, guarding against malformed/cyclic CodeDB deref chains.
const maxOffsetHops = 16

// bindingPair is one (binding arg index, bound arg index) pair for a
// known user-copy function.
type bindingPair struct {
	BindingArg int
	BoundArg   int
}

// bindingTable is the fixed user-copy function table (spec §4.5).
var bindingTable = map[string][]bindingPair{
	"copy_from_user": {{BindingArg: 2, BoundArg: 0}, {BindingArg: 2, BoundArg: 1}},
	"copy_to_user":   {{BindingArg: 2, BoundArg: 0}, {BindingArg: 2, BoundArg: 1}},
}

// Analyze walks the callgraph from entryFuncID and returns every detected
// (length, pointer) member binding, keyed by parent record type id. The
// analyzer never fails the handler; any ambiguity just drops the pair.
func Analyze(db codedb.DB, entryFuncID int) *handler.PointerBounds {
	out := make(map[int]map[handler.MemberBounds]struct{})
	visited := make(map[int]bool)
	walk(db, entryFuncID, 1, visited, out)
	return &handler.PointerBounds{ByType: out}
}

func walk(db codedb.DB, funcID, depth int, visited map[int]bool, out map[int]map[handler.MemberBounds]struct{}) {
	if depth > maxDepth || visited[funcID] {
		return
	}
	visited[funcID] = true

	fn, ok := db.FunctionByID(funcID)
	if !ok {
		return // missing function entry terminates the branch quietly
	}
	derefByID := indexDerefs(fn.Derefs)

	for i, calleeID := range fn.Calls {
		callee, ok := db.FunctionByID(calleeID)
		if ok {
			if pairs, known := bindingTable[callee.Name]; known && i < len(fn.CallInfo) {
				detectPairs(db, fn.CallInfo[i], derefByID, pairs, out)
			}
		}
		walk(db, calleeID, depth+1, visited, out)
	}
}

func indexDerefs(derefs []codedb.Deref) map[int]codedb.Deref {
	m := make(map[int]codedb.Deref, len(derefs))
	for _, d := range derefs {
		m[d.ID] = d
	}
	return m
}

func detectPairs(db codedb.DB, ci codedb.CallInfo, derefByID map[int]codedb.Deref, pairs []bindingPair, out map[int]map[handler.MemberBounds]struct{}) {
	for _, p := range pairs {
		if p.BindingArg >= len(ci.Args) || p.BoundArg >= len(ci.Args) {
			continue
		}
		bindingDeref, ok := derefByID[ci.Args[p.BindingArg]]
		if !ok || len(bindingDeref.OffsetRefs) == 0 || bindingDeref.OffsetRefs[0].Kind != "member" {
			continue
		}
		boundDeref, ok := derefByID[ci.Args[p.BoundArg]]
		if !ok || len(boundDeref.OffsetRefs) == 0 || boundDeref.OffsetRefs[0].Kind != "member" {
			continue
		}

		bindingMember, bindingParent, ok := walkToMember(bindingDeref, derefByID)
		if !ok {
			continue
		}
		boundMember, boundParent, ok := walkToMember(boundDeref, derefByID)
		if !ok {
			continue
		}
		if bindingParent != boundParent {
			continue
		}
		parentType, ok := db.TypeByID(bindingParent)
		if !ok || parentType.Union {
			continue
		}

		bounds := handler.MemberBounds{BindingMember: bindingMember, BoundMember: boundMember}
		if out[parentType.ID] == nil {
			out[parentType.ID] = make(map[handler.MemberBounds]struct{})
		}
		out[parentType.ID][bounds] = struct{}{}
	}
}

// walkToMember follows offsetrefs[0].id repeatedly until reaching a
// member-kind deref, returning its field index (last element of Member)
// and parent type id (last element of Type), per spec §4.5.
func walkToMember(d codedb.Deref, derefByID map[int]codedb.Deref) (member int, parent int, ok bool) {
	cur := d
	for hops := 0; hops < maxOffsetHops; hops++ {
		if cur.Kind == "member" {
			if len(cur.Member) == 0 || len(cur.Type) == 0 {
				return 0, 0, false
			}
			return cur.Member[len(cur.Member)-1], cur.Type[len(cur.Type)-1], true
		}
		if len(cur.OffsetRefs) == 0 {
			return 0, 0, false
		}
		next, ok := derefByID[cur.OffsetRefs[0].ID]
		if !ok {
			return 0, 0, false
		}
		cur = next
	}
	return 0, 0, false
}
