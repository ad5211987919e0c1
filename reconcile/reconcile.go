// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile matches a gazetteer against a reference gazetteer by
// identifier and merges the two.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/resolve"
	"github.com/jcodagnone/gazetteer/similarity"
)

// ErrUnresolved is returned when a collection has no identifiers and they
// could not be looked up.
var ErrUnresolved = errors.New("collection has no resolved identifiers")

// Resolver fills in missing identifiers. *resolve.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, c *gazetteer.Collection, mode resolve.Mode) (*resolve.Report, error)
}

// Engine reconciles collections.
type Engine struct {
	resolver Resolver
}

// New creates an engine. resolver may be nil, in which case both collections
// must already carry identifiers.
func New(resolver Resolver) *Engine {
	return &Engine{resolver: resolver}
}

// Report lists primary row numbers by outcome.
type Report struct {
	// Exact rows share an identifier and a similar name with a reference row.
	Exact []int
	// Conflicts share an identifier with a reference row under another name.
	Conflicts []int
	// Novel rows have no counterpart in the reference.
	Novel []int
}

// Summary renders the report as diagnostic lines.
func (r *Report) Summary() []string {
	lines := []string{
		"Results of the existing gazetteer match process:",
		"The following rows have matching identifiers and very similar names: " + gazetteer.FormatRows(r.Exact),
	}

	if len(r.Conflicts) > 0 {
		lines = append(lines, "The following rows have matching identifiers, but different names: "+gazetteer.FormatRows(r.Conflicts))
	}

	return lines
}

// Reconcile matches every primary record against the reference record with
// the same identifier. Match and ExistingName are set on primary records.
// Records without an identifier never match. Either collection lacking
// identifiers is resolved first; if that fails the returned error wraps
// ErrUnresolved.
func (e *Engine) Reconcile(ctx context.Context, primary, reference *gazetteer.Collection) (*Report, error) {
	for _, c := range []*gazetteer.Collection{primary, reference} {
		if err := c.Validate(); err != nil {
			primary.Diagnostics.Addf("Please fix the %s gazetteer errors before proceeding.", c.Name)

			return nil, fmt.Errorf("reconciling %s: %w", c.Name, err)
		}

		if err := e.ensureIdentifiers(ctx, c); err != nil {
			return nil, err
		}
	}

	byID := make(map[string]*gazetteer.Record, len(reference.Records))
	for _, r := range reference.Records {
		if !r.Resolved() {
			continue
		}

		if _, ok := byID[r.Identifier]; !ok {
			byID[r.Identifier] = r
		}
	}

	report := &Report{}

	for i, r := range primary.Records {
		match := false
		r.Match = &match
		r.ExistingName = ""

		ref, ok := byID[r.Identifier]
		if !r.Resolved() || !ok {
			report.Novel = append(report.Novel, gazetteer.RowNumber(i))

			continue
		}

		r.ExistingName = ref.Name

		if similarity.Similar(r.Name, ref.Name) {
			match = true
			report.Exact = append(report.Exact, gazetteer.RowNumber(i))
		} else {
			report.Conflicts = append(report.Conflicts, gazetteer.RowNumber(i))
		}
	}

	primary.Diagnostics.Add(report.Summary()...)

	return report, nil
}

func (e *Engine) ensureIdentifiers(ctx context.Context, c *gazetteer.Collection) error {
	if c.HasIdentifiers() {
		return nil
	}

	if e.resolver == nil {
		return fmt.Errorf("%w: %s", ErrUnresolved, c.Name)
	}

	if _, err := e.resolver.Resolve(ctx, c, resolve.Single); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnresolved, c.Name, err)
	}

	if !c.HasIdentifiers() {
		return fmt.Errorf("%w: %s: no record could be resolved", ErrUnresolved, c.Name)
	}

	return nil
}

// Merge appends primary to reference. Reference rows come first. When
// dropMatches is set, primary rows reported as exact matches are left out and
// conflict rows carry the reference name in ReferenceName. Otherwise both
// collections are concatenated. The match and exist_name outcomes of
// Reconcile are not carried into the merge. Neither input is modified.
func Merge(primary, reference *gazetteer.Collection, report *Report, dropMatches bool) *gazetteer.Collection {
	out := reference.Clone()
	out.Name = fmt.Sprintf("%s_and_%s_merged", primary.Name, reference.Name)
	out.Columns = slices.DeleteFunc(out.Columns, isMatchColumn)

	for _, col := range primary.Columns {
		if !out.HasColumn(col) && !isMatchColumn(col) {
			out.Columns = append(out.Columns, col)
		}
	}

	for _, r := range out.Records {
		clearMatch(r)
	}

	exact := make(map[int]bool)
	conflicts := make(map[int]bool)

	if dropMatches && report != nil {
		for _, row := range report.Exact {
			exact[row] = true
		}

		for _, row := range report.Conflicts {
			conflicts[row] = true
		}
	}

	for i, r := range primary.Records {
		row := gazetteer.RowNumber(i)
		if exact[row] {
			continue
		}

		rec := r.Clone()
		clearMatch(rec)

		if conflicts[row] {
			rec.ReferenceName = r.ExistingName
		}

		out.Records = append(out.Records, rec)
	}

	return out
}

func isMatchColumn(col string) bool {
	return col == gazetteer.ColMatch || col == gazetteer.ColExistingName
}

func clearMatch(r *gazetteer.Record) {
	r.Match = nil
	r.ExistingName = ""
}
