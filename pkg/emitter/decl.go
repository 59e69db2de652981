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

import "fmt"

// Decl is one node of the declaration tree the Emitter builds before
// rendering the description language's fixed textual tokens (spec §4.6,
// §6). Each concrete type implements the grammar fragment named in the
// CodeDB-class-to-declaration mapping table.
type Decl interface {
	String() string
}

// RecordDecl references an already-defined record/union type by its
// assigned name.
type RecordDecl struct{ Name string }

func (d RecordDecl) String() string { return d.Name }

// EnumDecl renders an enum reference as a 32-bit flags set.
type EnumDecl struct{ Name string }

func (d EnumDecl) String() string { return fmt.Sprintf("flags[%s, int32]", d.Name) }

// PointerDecl renders a pointer field. A void pointee renders as an
// untyped buffer; an Opt pointer (marked by PointerCycleAnalyzer) carries
// the trailing opt token.
type PointerDecl struct {
	Inner Decl
	Opt   bool
}

func (d PointerDecl) String() string {
	if _, isVoid := d.Inner.(VoidDecl); isVoid {
		return "buffer[inout]"
	}
	if d.Opt {
		return fmt.Sprintf("ptr[inout, %s, opt]", d.Inner)
	}
	return fmt.Sprintf("ptr[inout, %s]", d.Inner)
}

// ArrayDecl renders a fixed-length array; N is already coerced away from
// zero by the caller (spec's zero-size coercion rule).
type ArrayDecl struct {
	Elem Decl
	N    int
}

func (d ArrayDecl) String() string { return fmt.Sprintf("array[%s, %d]", d.Elem, d.N) }

// IntegerDecl renders a fixed-width builtin integer.
type IntegerDecl struct{ Bits int }

func (d IntegerDecl) String() string { return fmt.Sprintf("int%d", d.Bits) }

// VoidDecl renders the builtin void type.
type VoidDecl struct{}

func (d VoidDecl) String() string { return "void" }

// LengthDecl wraps a binding (size) field's declaration with a reference
// to the field it bounds.
type LengthDecl struct {
	Field string
	Inner Decl
}

func (d LengthDecl) String() string { return fmt.Sprintf("len[%s, %s]", d.Field, d.Inner) }

// EmptyDecl renders as nothing: the unresolved-type case drops the
// field's type rendering entirely.
type EmptyDecl struct{}

func (d EmptyDecl) String() string { return "" }
