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

// Package dispatch implements the DispatchCollector (spec §4.1): it finds
// dispatch-table instances of interest in CodeDB and the function-id of
// their ioctl-like slot.
package dispatch

import (
	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/internal/errors"
	"github.com/kraklabs/syzdescriptor/pkg/handler"
)

// Syscall is a (dispatch_type_name, slot_name) pair, e.g.
// file_operations:unlocked_ioctl.
type Syscall struct {
	DispatchType string
	Slot         string
}

// Collect finds every matching dispatch-table instance in db and returns
// one handler record per match, names uniquified within the batch.
//
// Grounded on pkg/ingestion/resolver.go's BuildIndex: build lookup maps
// before resolving, rather than re-scanning CodeDB per syscall.
func Collect(db codedb.DB, syscalls []Syscall) ([]*handler.Record, error) {
	typesByName := indexConcreteTypesByName(db)

	if !anyDispatchKindPresent(typesByName, syscalls) {
		return nil, errors.DispatchMissing("no non-forward dispatch type found in CodeDB")
	}

	seen := make(map[string]bool)
	var out []*handler.Record

	for _, inst := range db.FopsInstances() {
		if !inst.IsGlobal() {
			continue // spec §4.1: non-global instances are silently skipped
		}
		t, ok := db.TypeByID(inst.Type)
		if !ok {
			continue
		}
		for _, sc := range syscalls {
			if t.Str != sc.DispatchType {
				continue
			}
			slot, ok := slotIndex(t, sc.Slot)
			if !ok {
				continue
			}
			funcIDs, ok := inst.Members[slot]
			if !ok || len(funcIDs) == 0 {
				continue
			}
			funcID := funcIDs[0]
			if !db.ContainsFuncID(funcID) {
				continue
			}
			name := uniquify(seen, inst.Var)
			out = append(out, handler.New(name, funcID))
		}
	}

	return out, nil
}

// indexConcreteTypesByName builds a name -> []Type index over non-forward
// record types, keeping every instance of a repeated name (spec §4.1).
func indexConcreteTypesByName(db codedb.DB) map[string][]codedb.Type {
	idx := make(map[string][]codedb.Type)
	for _, t := range db.Types() {
		if t.Class != codedb.ClassRecord {
			continue
		}
		idx[t.Str] = append(idx[t.Str], t)
	}
	return idx
}

func anyDispatchKindPresent(typesByName map[string][]codedb.Type, syscalls []Syscall) bool {
	for _, sc := range syscalls {
		if len(typesByName[sc.DispatchType]) > 0 {
			return true
		}
	}
	return false
}

// slotIndex matches slotName against t's refnames.
func slotIndex(t codedb.Type, slotName string) (int, bool) {
	for i, n := range t.RefNames {
		if n == slotName {
			return i, true
		}
	}
	return 0, false
}

// uniquify appends "_" until name is not in seen, then records it (spec
// §4.1's name uniquification rule).
func uniquify(seen map[string]bool, name string) string {
	candidate := name
	for seen[candidate] {
		candidate += "_"
	}
	seen[candidate] = true
	return candidate
}
