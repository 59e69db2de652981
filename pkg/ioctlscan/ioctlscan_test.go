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

package ioctlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/syzdescriptor/internal/codedb"
)

func TestAnalyzeHarvestsDirectSwitch(t *testing.T) {
	db := codedb.NewMemDB(
		[]codedb.Type{{ID: 10, Str: "int", Class: codedb.ClassBuiltin, Size: 32}},
		[]codedb.Function{{
			ID:     42,
			Name:   "my_ioctl",
			Locals: []codedb.Local{{Name: "file"}, {Name: "cmd"}, {Name: "arg"}},
			Switches: []codedb.Switch{{
				Condition: "cmd",
				Cases: []codedb.Case{
					{Value: 1, Label: "MY_CMD", Expanded: "if (cmd == sizeof(int)) {}"},
				},
			}},
		}},
		nil,
	)

	cmds, ok := Analyze(db, 42)
	require.True(t, ok)
	require.Len(t, cmds.Items, 1)
	assert.Equal(t, "MY_CMD", cmds.Items[0].Label)
	assert.Equal(t, int64(1), cmds.Items[0].Value)
	assert.Equal(t, 10, cmds.Items[0].RootTypeID)
}

func TestAnalyzeFollowsForwarder(t *testing.T) {
	// The command marker sits at array index 2 of the callref but carries
	// Pos 0 — deliberately distinct from both its array index and the
	// legacy Pos==1 convention, so this only passes if forwarderCommandIndex
	// discriminates markers by ID and returns the marker's Pos (0), which is
	// where "command" actually lives in the callee's locals.
	db := codedb.NewMemDB(
		[]codedb.Type{{ID: 20, Str: "payload", Class: codedb.ClassRecord, Refs: []int{10}, RefNames: []string{"x"}}},
		[]codedb.Function{
			{
				ID:     50,
				Name:   "entry_ioctl",
				Locals: []codedb.Local{{Name: "file"}, {Name: "cmd"}, {Name: "arg"}},
				Calls:  []int{51},
				CallRefs: [][]codedb.CallRefArg{
					{
						{Type: "other", Pos: 9},
						{Type: "parm", ID: 2, Pos: 5},
						{Type: "parm", ID: 1, Pos: 0},
					},
				},
			},
			{
				ID:     51,
				Name:   "real_ioctl",
				Locals: []codedb.Local{{Name: "command"}, {Name: "f"}, {Name: "a"}},
				Switches: []codedb.Switch{{
					Condition: "command",
					Cases: []codedb.Case{
						{Value: 7, Label: "REAL_CMD", Expanded: "sizeof(struct payload)"},
					},
				}},
			},
		},
		nil,
	)

	cmds, ok := Analyze(db, 50)
	require.True(t, ok)
	require.Len(t, cmds.Items, 1)
	assert.Equal(t, "REAL_CMD", cmds.Items[0].Label)
	assert.Equal(t, 20, cmds.Items[0].RootTypeID)
}

func TestAnalyzeBoundsForwarderDepth(t *testing.T) {
	// A chain of forwarders four deep exceeds max_depth=3 and must not
	// reach the switch at the bottom.
	db := codedb.NewMemDB(
		[]codedb.Type{{ID: 10, Str: "int", Class: codedb.ClassBuiltin, Size: 32}},
		[]codedb.Function{
			{ID: 1, Name: "f1", Locals: []codedb.Local{{Name: "a"}, {Name: "cmd"}, {Name: "b"}}, Calls: []int{2}, CallRefs: [][]codedb.CallRefArg{{{Type: "other", Pos: 0}, {Type: "parm", ID: 1, Pos: 1}, {Type: "parm", ID: 2, Pos: 2}}}},
			{ID: 2, Name: "f2", Locals: []codedb.Local{{Name: "a"}, {Name: "cmd"}, {Name: "b"}}, Calls: []int{3}, CallRefs: [][]codedb.CallRefArg{{{Type: "other", Pos: 0}, {Type: "parm", ID: 1, Pos: 1}, {Type: "parm", ID: 2, Pos: 2}}}},
			{ID: 3, Name: "f3", Locals: []codedb.Local{{Name: "a"}, {Name: "cmd"}, {Name: "b"}}, Calls: []int{4}, CallRefs: [][]codedb.CallRefArg{{{Type: "other", Pos: 0}, {Type: "parm", ID: 1, Pos: 1}, {Type: "parm", ID: 2, Pos: 2}}}},
			{ID: 4, Name: "f4", Locals: []codedb.Local{{Name: "a"}, {Name: "cmd"}, {Name: "b"}}, Switches: []codedb.Switch{{
				Condition: "cmd",
				Cases:     []codedb.Case{{Value: 1, Label: "DEEP", Expanded: "sizeof(int)"}},
			}}},
		},
		nil,
	)

	_, ok := Analyze(db, 1)
	assert.False(t, ok, "a forwarder chain past max_depth must harvest nothing")
}

func TestAnalyzeSkipsUnresolvedType(t *testing.T) {
	db := codedb.NewMemDB(
		nil,
		[]codedb.Function{{
			ID:     42,
			Locals: []codedb.Local{{Name: "file"}, {Name: "cmd"}, {Name: "arg"}},
			Switches: []codedb.Switch{{
				Condition: "cmd",
				Cases:     []codedb.Case{{Value: 1, Label: "UNKNOWN", Expanded: "sizeof(struct nonexistent)"}},
			}},
		}},
		nil,
	)

	_, ok := Analyze(db, 42)
	assert.False(t, ok)
}

func TestResolveTypeRejectsForwardDeclarations(t *testing.T) {
	db := codedb.NewMemDB(
		[]codedb.Type{
			{ID: 1, Str: "thing", Class: codedb.ClassRecordForward},
			{ID: 2, Str: "thing", Class: codedb.ClassRecord},
		},
		nil, nil,
	)

	got, ok := resolveType(db, "struct thing *")
	require.True(t, ok)
	assert.Equal(t, 2, got.ID)
}
