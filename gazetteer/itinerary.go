// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package gazetteer

import (
	"fmt"
	"slices"
	"strings"
)

// Columns added to gazetteers built from an itinerary, left blank for the
// editor to fill in.
var curationColumns = []string{"modern_country", "checked", "certainty"}

// FromItinerary builds a gazetteer with one record per distinct place of the
// itinerary. The first occurrence of a name wins and records are sorted by
// name. Calendar fields are dropped.
func FromItinerary(itin *Collection) *Collection {
	seen := make(map[string]bool)
	gaz := &Collection{
		Name:        itin.Name + "_gazetteer",
		Kind:        KindGazetteer,
		Columns:     []string{ColName, ColLatitude, ColLongitude},
		Diagnostics: &Diagnostics{},
	}

	for _, r := range itin.Records {
		if r.Name == "" || seen[r.Name] {
			continue
		}

		seen[r.Name] = true

		out := r.Clone()
		out.Day, out.Month, out.Year, out.Date = nil, nil, nil, nil
		out.GazetteerMatch = ""
		delete(out.invalid, ColDay)
		delete(out.invalid, ColMonth)
		delete(out.invalid, ColYear)
		delete(out.invalid, ColDates)
		gaz.Records = append(gaz.Records, out)
	}

	slices.SortStableFunc(gaz.Records, func(a, b *Record) int {
		return strings.Compare(a.Name, b.Name)
	})

	gaz.Columns = append(gaz.Columns, curationColumns...)
	for _, col := range itin.Columns {
		switch col {
		case ColDay, ColMonth, ColYear, ColDates, ColGazetteerMatch:
			continue
		}

		gaz.addColumn(col)
	}

	if !itin.HasCoordinates() {
		gaz.Diagnostics.Add("Warning: This gazetteer lacks lat-long coordinates")
	}

	return gaz
}

// LabelItinerary adds code to the labels of every gazetteer record whose name
// appears in itin. A code is never repeated on a record. Itinerary names
// missing from the gazetteer are reported.
func (c *Collection) LabelItinerary(itin *Collection, code string) {
	byName := make(map[string][]*Record)
	for _, r := range c.Records {
		byName[r.Name] = append(byName[r.Name], r)
	}

	c.Diagnostics.Addf("Running \"Itinerary Labels\" for %s against %s:", code, itin.Name)

	seen := make(map[string]bool)
	for _, r := range itin.Records {
		if r.Name == "" || seen[r.Name] {
			continue
		}

		seen[r.Name] = true

		matches, ok := byName[r.Name]
		if !ok {
			c.Diagnostics.Addf("%s not found in Gazetteer", r.Name)

			continue
		}

		for _, g := range matches {
			if !slices.Contains(g.Labels, code) {
				g.Labels = append(g.Labels, code)
			}
		}
	}

	c.addColumn(ColLabels)
}

// LookupAttributes copies attributes from the gazetteer record sharing each
// itinerary record's name. Attributes are column names: the coordinates, the
// identifier or any extra column of the gazetteer. Records with no match
// keep their value and are reported with their row number.
func (c *Collection) LookupAttributes(gaz *Collection, attributes []string) {
	byName := make(map[string]*Record, len(gaz.Records))
	for _, r := range gaz.Records {
		if _, ok := byName[r.Name]; !ok && r.Name != "" {
			byName[r.Name] = r
		}
	}

	for _, attr := range attributes {
		if !gaz.HasColumn(attr) {
			c.Diagnostics.Addf("The gazetteer used for the attribute lookup does not contain %ss.", attr)

			continue
		}

		c.Diagnostics.Addf("Looking up %s in the gazetteer.", attr)

		var missing []string

		for i, r := range c.Records {
			if r.Name == "" {
				continue
			}

			g, ok := byName[r.Name]
			if !ok {
				missing = append(missing, fmt.Sprintf("Error on line %d; %s", RowNumber(i), r.Name))

				continue
			}

			r.copyAttribute(g, attr)
		}

		if len(missing) > 0 {
			c.Diagnostics.Addf("The following %ss were not in the Gazetteer:", attr)
			c.Diagnostics.Add(missing...)
		}

		c.addColumn(attr)
	}
}

func (r *Record) copyAttribute(from *Record, attr string) {
	delete(r.invalid, attr)

	switch attr {
	case ColLatitude:
		r.Latitude = clonePtr(from.Latitude)
	case ColLongitude:
		r.Longitude = clonePtr(from.Longitude)
	case ColIdentifier:
		r.Identifier = from.Identifier
	default:
		if isKnownColumn(attr) {
			if v := from.cell(attr); v != "" {
				r.setCell(attr, v)
			}

			return
		}

		v, ok := from.Extra[attr]
		if !ok {
			delete(r.Extra, attr)

			return
		}

		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}

		r.Extra[attr] = v
	}
}
