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

package emitter

import (
	"fmt"
	"strings"

	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/pkg/handler"
)

// anonFieldMarkers are the CodeDB field-name sentinels for anonymous
// nested records; they're rewritten to anonymous0, anonymous1, ... with a
// counter reset per record (spec §4.6).
var anonFieldMarkers = map[string]bool{
	"__!anonrecord__": true,
	"__!recorddecl__": true,
}

// renderTypeDefinition renders the full definition for one dependency:
// a record/union body or an enum's value list.
func (e *Emitter) renderTypeDefinition(typeID int, cycles map[int][]handler.PointerCycle, bounds map[int]map[handler.MemberBounds]struct{}) string {
	t, ok := e.db.TypeByID(typeID)
	if !ok {
		return ""
	}
	switch t.Class {
	case codedb.ClassRecord:
		return e.renderRecord(t, cycles[typeID], bounds[typeID])
	case codedb.ClassEnum:
		return e.renderEnum(t)
	default:
		return ""
	}
}

func (e *Emitter) renderRecord(t codedb.Type, cycles []handler.PointerCycle, bounds map[handler.MemberBounds]struct{}) string {
	name := e.assignedTypeName(t)

	optByField := make(map[int]bool, len(cycles))
	for _, c := range cycles {
		optByField[c.FieldIndex] = true
	}

	fieldNames := make([]string, len(t.Refs))
	declTexts := make([]string, len(t.Refs))
	anonCounter := 0
	for i, ref := range t.Refs {
		fname := ""
		if i < len(t.RefNames) {
			fname = t.RefNames[i]
		}
		if anonFieldMarkers[fname] {
			fname = fmt.Sprintf("anonymous%d", anonCounter)
			anonCounter++
		}
		fieldNames[i] = fname
		declTexts[i] = e.declarationFor(ref, optByField[i]).String()
	}

	for mb := range bounds {
		if mb.BindingMember >= len(declTexts) || mb.BoundMember >= len(fieldNames) {
			continue
		}
		declTexts[mb.BindingMember] = LengthDecl{
			Field: fieldNames[mb.BoundMember],
			Inner: rawDecl(declTexts[mb.BindingMember]),
		}.String()
	}

	open, close := "{", "}"
	if t.Union {
		open, close = "[", "]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", name, open)
	for i := range fieldNames {
		fmt.Fprintf(&b, "\t%s\t%s\n", fieldNames[i], declTexts[i])
	}
	fmt.Fprintf(&b, "%s\n\n", close)
	return b.String()
}

func (e *Emitter) renderEnum(t codedb.Type) string {
	name := e.assignedTypeName(t)
	parts := make([]string, len(t.Values))
	for i, v := range t.Values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("%s = %s\n\n", name, strings.Join(parts, ", "))
}

// rawDecl wraps an already-rendered declaration string so it can be
// nested inside LengthDecl without re-resolving the type.
type rawDecl string

func (d rawDecl) String() string { return string(d) }
