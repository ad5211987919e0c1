// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package gazetteer

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Diagnostics accumulates human readable messages produced while processing a
// collection. Emitting them is left to the caller.
type Diagnostics struct {
	lines []string
}

// Add appends messages.
func (d *Diagnostics) Add(lines ...string) {
	d.lines = append(d.lines, lines...)
}

// Addf appends a formatted message.
func (d *Diagnostics) Addf(format string, args ...any) {
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}

// Append copies all the messages of other.
func (d *Diagnostics) Append(other *Diagnostics) {
	if other == nil {
		return
	}

	d.lines = append(d.lines, other.lines...)
}

// Len returns the number of accumulated messages.
func (d *Diagnostics) Len() int {
	return len(d.lines)
}

// Lines returns every message in insertion order.
func (d *Diagnostics) Lines() []string {
	return slices.Clone(d.lines)
}

// Unique returns the messages with repeats removed, keeping the first
// occurrence of each.
func (d *Diagnostics) Unique() []string {
	seen := make(map[string]struct{}, len(d.lines))
	out := make([]string, 0, len(d.lines))

	for _, line := range d.lines {
		if _, ok := seen[line]; ok {
			continue
		}

		seen[line] = struct{}{}
		out = append(out, line)
	}

	return out
}

// RowNumber converts a zero based record index into the row number shown by a
// spreadsheet holding the same file: one for the header, one for 1-indexing.
func RowNumber(index int) int {
	return index + 2
}

// FormatRows renders row numbers as a comma separated list.
func FormatRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = strconv.Itoa(r)
	}

	return strings.Join(parts, ", ")
}
