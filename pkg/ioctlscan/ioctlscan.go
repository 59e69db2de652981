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

// Package ioctlscan implements the IoctlAnalyzer (spec §4.2): from a
// handler function-id, mine (label, value, root-type-id) command tuples,
// following thin forwarder wrappers up to a bounded depth.
package ioctlscan

import (
	"regexp"
	"strings"

	"github.com/kraklabs/syzdescriptor/internal/codedb"
	"github.com/kraklabs/syzdescriptor/pkg/handler"
)

// maxDepth bounds forwarder-chain recursion; the initial call counts as
// depth 1 (spec §4.2, §5).
const maxDepth = 3

// entryCommandArgIndex is the position of the ioctl command argument in
// the handler's own parameter/local list. All three supported dispatch
// kinds (file_operations, proc_ops, uart_ops) place it second:
// (self, cmd, arg).
const entryCommandArgIndex = 1

// sizeofPattern extracts the type text from a sizeof(...) fragment in
// expanded case text (spec §4.2's fixed regex).
var sizeofPattern = regexp.MustCompile(`sizeof\(([a-zA-Z0-9\s_\-$\[\]\*]+)\)`)

// Analyze mines commands reachable from the handler's entry function.
// Returns ok=false when nothing was harvested; the pipeline treats that
// as a fatal skip for the handler.
func Analyze(db codedb.DB, entryFuncID int) (*handler.Commands, bool) {
	var cmds []handler.Command
	visit(db, entryFuncID, entryCommandArgIndex, 1, &cmds)
	if len(cmds) == 0 {
		return nil, false
	}
	return &handler.Commands{Items: cmds}, true
}

func visit(db codedb.DB, funcID, cmdArgIndex, depth int, out *[]handler.Command) {
	fn, ok := db.FunctionByID(funcID)
	if !ok {
		return // missing function entry terminates the branch quietly
	}

	harvestSwitches(db, fn, cmdArgIndex, out)

	if depth >= maxDepth {
		return
	}
	for i, callee := range fn.Calls {
		if i >= len(fn.CallRefs) {
			break
		}
		newIdx, isForwarder := forwarderCommandIndex(fn.CallRefs[i])
		if !isForwarder {
			continue
		}
		visit(db, callee, newIdx, depth+1, out)
	}
}

// forwarderCommandIndex reports whether args contains both a (parm, id=1)
// command marker and a (parm, id=2) argument marker, and if so the new
// command-argument index in the callee — the command marker's Pos field,
// not its position within args (spec §4.2).
func forwarderCommandIndex(args []codedb.CallRefArg) (int, bool) {
	cmdPos, hasCmd := -1, false
	hasArg := false
	for _, a := range args {
		if a.Type != "parm" {
			continue
		}
		switch a.ID {
		case 1:
			cmdPos, hasCmd = a.Pos, true
		case 2:
			hasArg = true
		}
	}
	if hasCmd && hasArg {
		return cmdPos, true
	}
	return 0, false
}

func harvestSwitches(db codedb.DB, fn codedb.Function, cmdArgIndex int, out *[]handler.Command) {
	if cmdArgIndex < 0 || cmdArgIndex >= len(fn.Locals) {
		return // out-of-range local lookup terminates the branch without error
	}
	cmdVar := fn.Locals[cmdArgIndex].Name

	for _, sw := range fn.Switches {
		if sw.Condition != cmdVar {
			continue
		}
		for _, c := range sw.Cases {
			typeStr, ok := extractSizeofType(c.Expanded)
			if !ok {
				continue
			}
			t, ok := resolveType(db, typeStr)
			if !ok {
				continue // unresolved type: skip the case silently
			}
			*out = append(*out, handler.Command{
				Label:      c.Label,
				Value:      c.Value,
				RootTypeID: t.ID,
			})
		}
	}
}

func extractSizeofType(expanded string) (string, bool) {
	m := sizeofPattern.FindStringSubmatch(expanded)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// resolveType strips struct/union/enum keywords and pointer/array
// suffixes, then looks up the bare name across all CodeDB types,
// rejecting forward declarations and picking the first remaining
// candidate deterministically (spec §4.2).
func resolveType(db codedb.DB, raw string) (codedb.Type, bool) {
	bare := stripTypeQualifiers(raw)
	for _, t := range db.Types() {
		if t.Str != bare {
			continue
		}
		if t.Class == codedb.ClassRecordForward || t.Class == codedb.ClassEnumForward {
			continue
		}
		return t, true
	}
	return codedb.Type{}, false
}

func stripTypeQualifiers(raw string) string {
	s := strings.TrimSpace(raw)
	for _, prefix := range []string{"struct ", "union ", "enum "} {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "*") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "*"))
	}
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
