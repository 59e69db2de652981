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

package pointercycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/pkg/handler"
)

func TestAnalyzeMarksSelfReferenceCycle(t *testing.T) {
	db := codedb.NewMemDB([]codedb.Type{
		{ID: 20, Str: "node", Class: codedb.ClassRecord, RefNames: []string{"next", "x"}, Refs: []int{21, 22}},
		{ID: 21, Class: codedb.ClassPointer, Refs: []int{20}},
		{ID: 22, Str: "int", Class: codedb.ClassBuiltin, Size: 32},
	}, nil, nil)

	cycles := Analyze(db, &handler.Commands{Items: []handler.Command{{RootTypeID: 20}}})
	require.Contains(t, cycles.ByType, 20)
	assert.Equal(t, []handler.PointerCycle{{Target: 20, FieldIndex: 0}}, cycles.ByType[20])
}

func TestAnalyzeMarksTwoLevelAncestorCycle(t *testing.T) {
	// a(1){ b b_field(2) }; b(2){ a *back(pointer 3 -> a) }
	db := codedb.NewMemDB([]codedb.Type{
		{ID: 1, Str: "a", Class: codedb.ClassRecord, RefNames: []string{"b_field"}, Refs: []int{2}},
		{ID: 2, Str: "b", Class: codedb.ClassRecord, RefNames: []string{"back"}, Refs: []int{3}},
		{ID: 3, Class: codedb.ClassPointer, Refs: []int{1}},
	}, nil, nil)

	cycles := Analyze(db, &handler.Commands{Items: []handler.Command{{RootTypeID: 1}}})
	require.Contains(t, cycles.ByType, 2)
	assert.Equal(t, []handler.PointerCycle{{Target: 1, FieldIndex: 0}}, cycles.ByType[2])
	assert.NotContains(t, cycles.ByType, 1, "a itself has no cycling field")
}

func TestAnalyzeIgnoresNonPointerFields(t *testing.T) {
	db := codedb.NewMemDB([]codedb.Type{
		{ID: 1, Str: "flat", Class: codedb.ClassRecord, RefNames: []string{"x"}, Refs: []int{2}},
		{ID: 2, Str: "int", Class: codedb.ClassBuiltin, Size: 32},
	}, nil, nil)

	cycles := Analyze(db, &handler.Commands{Items: []handler.Command{{RootTypeID: 1}}})
	assert.Empty(t, cycles.ByType)
}
