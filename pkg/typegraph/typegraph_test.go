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

package typegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/pkg/handler"
)

// node_ptr(21) -> node(20){ next *node(21), x int(22) }
func selfRefDB() codedb.DB {
	return codedb.NewMemDB([]codedb.Type{
		{ID: 20, Str: "node", Class: codedb.ClassRecord, RefNames: []string{"next", "x"}, Refs: []int{21, 22}},
		{ID: 21, Class: codedb.ClassPointer, Refs: []int{20}},
		{ID: 22, Str: "int", Class: codedb.ClassBuiltin, Size: 32},
	}, nil, nil)
}

func TestClosureSelfReferenceYieldsSingleDep(t *testing.T) {
	db := selfRefDB()
	deps := Analyze(db, &handler.Commands{Items: []handler.Command{{RootTypeID: 20}}})
	assert.Equal(t, []int{20}, deps.TypeIDs, "self-referencing record closes to exactly {node}, per I1")
}

func TestHasFieldsExcludesBuiltins(t *testing.T) {
	db := selfRefDB()
	assert.True(t, HasFields(db, 20))
	assert.False(t, HasFields(db, 22))
}

func TestDetypedefFollowsChain(t *testing.T) {
	db := codedb.NewMemDB([]codedb.Type{
		{ID: 1, Class: codedb.ClassTypedef, Refs: []int{2}},
		{ID: 2, Class: codedb.ClassTypedef, Refs: []int{3}},
		{ID: 3, Str: "int", Class: codedb.ClassBuiltin, Size: 32},
	}, nil, nil)
	assert.Equal(t, 3, Detypedef(db, 1))
}

func TestDereferenceCollapsesPointerAndTypedef(t *testing.T) {
	db := codedb.NewMemDB([]codedb.Type{
		{ID: 1, Class: codedb.ClassTypedef, Refs: []int{2}},
		{ID: 2, Class: codedb.ClassPointer, Refs: []int{3}},
		{ID: 3, Str: "thing", Class: codedb.ClassRecord},
	}, nil, nil)
	assert.Equal(t, 3, Dereference(db, 1))
}

func TestClosureUnionsAcrossCommandRoots(t *testing.T) {
	db := codedb.NewMemDB([]codedb.Type{
		{ID: 1, Str: "a", Class: codedb.ClassRecord, Refs: []int{3}, RefNames: []string{"n"}},
		{ID: 2, Str: "b", Class: codedb.ClassRecord, Refs: []int{3}, RefNames: []string{"n"}},
		{ID: 3, Str: "int", Class: codedb.ClassBuiltin, Size: 32},
	}, nil, nil)

	deps := Analyze(db, &handler.Commands{Items: []handler.Command{{RootTypeID: 1}, {RootTypeID: 2}}})
	assert.Equal(t, []int{1, 2}, deps.TypeIDs)
}

func TestClosureStopsAtEnum(t *testing.T) {
	db := codedb.NewMemDB([]codedb.Type{
		{ID: 1, Str: "withenum", Class: codedb.ClassRecord, Refs: []int{2}, RefNames: []string{"e"}},
		{ID: 2, Str: "color", Class: codedb.ClassEnum, Values: []int64{0, 1, 2}},
	}, nil, nil)

	deps := Analyze(db, &handler.Commands{Items: []handler.Command{{RootTypeID: 1}}})
	assert.Equal(t, []int{1}, deps.TypeIDs, "enum nodes are DFS leaves and carry no further refs, so they drop out of deps")
}
