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

	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/pkg/typegraph"
)

// declarationFor maps a CodeDB type id to a Decl node per the
// class-to-declaration table in spec §4.6. opt is applied only to
// pointer declarations, per the pointer-cycle rule.
func (e *Emitter) declarationFor(typeID int, opt bool) Decl {
	t, ok := e.db.TypeByID(typeID)
	if !ok {
		return EmptyDecl{}
	}

	switch t.Class {
	case codedb.ClassRecord:
		return RecordDecl{Name: e.assignedTypeName(t)}

	case codedb.ClassEnum:
		return EnumDecl{Name: e.assignedTypeName(t)}

	case codedb.ClassPointer:
		if len(t.Refs) == 0 {
			return PointerDecl{Inner: VoidDecl{}, Opt: opt}
		}
		return PointerDecl{Inner: e.declarationFor(t.Refs[0], false), Opt: opt}

	case codedb.ClassConstArray, codedb.ClassIncompleteArray:
		if len(t.Refs) == 0 {
			return EmptyDecl{}
		}
		elemType, ok := e.db.TypeByID(t.Refs[0])
		if !ok {
			return EmptyDecl{}
		}
		n := 1
		if elemType.Size > 0 {
			n = t.Size / elemType.Size
		}
		if n < 1 {
			n = 1 // spec's zero-size coercion rule
		}
		return ArrayDecl{Elem: e.declarationFor(t.Refs[0], false), N: n}

	case codedb.ClassBuiltin:
		if t.Str == "void" {
			return VoidDecl{}
		}
		if t.Size <= 64 {
			return IntegerDecl{Bits: t.Size}
		}
		if t.Size%8 == 0 {
			return ArrayDecl{Elem: IntegerDecl{Bits: 8}, N: t.Size / 8}
		}
		return EmptyDecl{}

	// typedef/forward classes are collapsed before reaching here in
	// normal use, but resolve defensively rather than error.
	case codedb.ClassTypedef:
		return e.declarationFor(typegraph.Detypedef(e.db, typeID), opt)

	default:
		return EmptyDecl{}
	}
}

// assignedTypeName returns the batch-stable name assigned to t, assigning
// one on first use via the NameBook's type-name arena (spec §4.6(c)).
func (e *Emitter) assignedTypeName(t codedb.Type) string {
	if name, ok := e.typeNames[t.ID]; ok {
		return name
	}
	candidate := t.Str
	if candidate == "" {
		candidate = fmt.Sprintf("ANONTYPE_%d", t.ID)
	}
	name := e.book.TypeName(candidate)
	e.typeNames[t.ID] = name
	return name
}
