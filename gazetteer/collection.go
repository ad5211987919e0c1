// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package gazetteer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jcodagnone/gazetteer/spatial"
)

// ErrInvalidCollection is returned by operations gated on a valid collection.
var ErrInvalidCollection = errors.New("collection has validation defects")

// Kind tells gazetteers and itineraries apart. They differ in their required
// columns.
type Kind int

const (
	// KindGazetteer holds one row per place.
	KindGazetteer Kind = iota
	// KindItinerary holds one row per dated stay.
	KindItinerary
)

func (k Kind) String() string {
	if k == KindItinerary {
		return "itinerary"
	}

	return "gazetteer"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "gazetteer":
		return KindGazetteer, nil
	case "itinerary":
		return KindItinerary, nil
	}

	return KindGazetteer, fmt.Errorf("unknown collection kind %q", s)
}

// RequiredColumns returns the columns a file of this kind must carry.
func (k Kind) RequiredColumns() []string {
	if k == KindItinerary {
		return []string{ColName, ColDay, ColMonth, ColYear}
	}

	return []string{ColName, ColLatitude, ColLongitude}
}

// cellDefect is a cell that could not be parsed as a number.
type cellDefect struct {
	row    int
	column string
}

// Collection is an ordered set of records sharing a schema.
type Collection struct {
	Name    string
	Kind    Kind
	Records []*Record

	// Columns is the header as loaded. Written files keep this order and
	// append any column the engine filled in afterwards.
	Columns []string

	Diagnostics *Diagnostics

	nonNumeric []cellDefect
}

// New returns a collection over records. Its columns are the required ones
// for kind.
func New(name string, kind Kind, records []*Record) *Collection {
	return &Collection{
		Name:        name,
		Kind:        kind,
		Records:     records,
		Columns:     kind.RequiredColumns(),
		Diagnostics: &Diagnostics{},
	}
}

// Len returns the number of records.
func (c *Collection) Len() int {
	return len(c.Records)
}

// HasColumn reports whether col was part of the loaded header.
func (c *Collection) HasColumn(col string) bool {
	return slices.Contains(c.Columns, col)
}

func (c *Collection) addColumn(col string) {
	if !c.HasColumn(col) {
		c.Columns = append(c.Columns, col)
	}
}

// HasCoordinates reports whether the collection carries latitude and
// longitude columns.
func (c *Collection) HasCoordinates() bool {
	return c.HasColumn(ColLatitude) && c.HasColumn(ColLongitude)
}

// HasIdentifiers reports whether at least one record is resolved.
func (c *Collection) HasIdentifiers() bool {
	return slices.ContainsFunc(c.Records, (*Record).Resolved)
}

// Unresolved returns the indexes of records with a name and no identifier.
func (c *Collection) Unresolved() []int {
	var out []int

	for i, r := range c.Records {
		if r.Name != "" && !r.Resolved() {
			out = append(out, i)
		}
	}

	return out
}

// Clone returns a deep copy of the collection with fresh diagnostics.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Name:        c.Name,
		Kind:        c.Kind,
		Records:     make([]*Record, len(c.Records)),
		Columns:     slices.Clone(c.Columns),
		Diagnostics: &Diagnostics{},
		nonNumeric:  slices.Clone(c.nonNumeric),
	}

	for i, r := range c.Records {
		out.Records[i] = r.Clone()
	}

	return out
}

// Validate checks the schema and the coordinates. Every defect is added to the
// diagnostics with its row numbers and the returned error wraps
// ErrInvalidCollection. Coordinates are only checked when both coordinate
// columns are present; gazetteers require them.
func (c *Collection) Validate() error {
	var defects []string

	for _, col := range c.Kind.RequiredColumns() {
		if !c.HasColumn(col) {
			defects = append(defects, fmt.Sprintf("%s does not appear in this %s.", col, c.Kind))
		}
	}

	if len(defects) > 0 {
		c.Diagnostics.Add(defects...)
		c.Diagnostics.Addf("Please include the following columns in the %s file: %s",
			c.Kind, strings.Join(c.Kind.RequiredColumns(), ", "))

		return fmt.Errorf("%w: missing columns in %s", ErrInvalidCollection, c.Name)
	}

	var badLat, badLng []int

	for i, r := range c.Records {
		if r.Latitude != nil && spatial.ValidateLatitude(*r.Latitude) != nil {
			badLat = append(badLat, RowNumber(i))
		}

		if r.Longitude != nil && spatial.ValidateLongitude(*r.Longitude) != nil {
			badLng = append(badLng, RowNumber(i))
		}
	}

	if len(badLat) > 0 {
		defects = append(defects, "The following rows contain erroneous latitudes: "+FormatRows(badLat))
	}

	if len(badLng) > 0 {
		defects = append(defects, "The following rows contain erroneous longitudes: "+FormatRows(badLng))
	}

	for _, col := range []string{ColLatitude, ColLongitude} {
		var rows []int

		for _, d := range c.nonNumeric {
			if d.column == col {
				rows = append(rows, d.row)
			}
		}

		if len(rows) > 0 {
			defects = append(defects, fmt.Sprintf("The %s column contains non-numeric values in rows: %s", col, FormatRows(rows)))
		}
	}

	if len(defects) > 0 {
		c.Diagnostics.Add(defects...)

		return fmt.Errorf("%w: %d coordinate defects in %s", ErrInvalidCollection, len(defects), c.Name)
	}

	return nil
}
