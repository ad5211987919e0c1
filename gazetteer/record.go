// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package gazetteer holds the record collections shared by the resolver, the
// reconciliation engine and the trip segmenter: gazetteers (one row per place)
// and itineraries (one row per dated stay).
package gazetteer

import (
	"maps"
	"slices"
	"time"

	"github.com/jcodagnone/gazetteer/spatial"
)

// Candidate is a lookup result held for manual review. It is never promoted
// to an identifier automatically.
type Candidate struct {
	Name       string  `json:"name"`
	Identifier string  `json:"identifier"`
	DistanceKm float64 `json:"distance_km"`
}

// Record is one row of a gazetteer or itinerary.
type Record struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// Identifier is the canonical geocode identifier. A record holding one is
	// resolved and is skipped by later lookup passes.
	Identifier        string   `json:"identifier,omitempty"`
	MatchedName       string   `json:"matched_name,omitempty"`
	MatchedDistanceKm *float64 `json:"matched_distance_km,omitempty"`

	// Guess1 is the feature-restricted lookup result that failed the name
	// test; Guess2 the unrestricted one.
	Guess1 *Candidate `json:"guess1,omitempty"`
	Guess2 *Candidate `json:"guess2,omitempty"`

	Day   *int       `json:"day,omitempty"`
	Month *int       `json:"month,omitempty"`
	Year  *int       `json:"year,omitempty"`
	Date  *time.Time `json:"date,omitempty"`

	// Reconciliation outcome against a reference gazetteer. Match is nil until
	// reconciled; ExistingName is the reference name sharing the identifier.
	Match         *bool  `json:"match,omitempty"`
	ExistingName  string `json:"existing_name,omitempty"`
	ReferenceName string `json:"reference_name,omitempty"`

	GazetteerMatch string            `json:"gazetteer_match,omitempty"`
	Labels         []string          `json:"labels,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`

	// cells that could not be parsed, kept verbatim for writing back
	invalid map[string]string
}

// Resolved reports whether the record carries an identifier.
func (r *Record) Resolved() bool {
	return r.Identifier != ""
}

// Point returns the record coordinates, or nil when either one is missing.
func (r *Record) Point() *spatial.Point {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}

	return &spatial.Point{Lat: *r.Latitude, Lng: *r.Longitude}
}

// SetPoint sets both coordinates.
func (r *Record) SetPoint(p spatial.Point) {
	lat, lng := p.Lat, p.Lng
	r.Latitude = &lat
	r.Longitude = &lng
	delete(r.invalid, ColLatitude)
	delete(r.invalid, ColLongitude)
}

// Accept stores an identifier accepted for this record and drops any guess.
func (r *Record) Accept(c Candidate) {
	d := c.DistanceKm
	r.Identifier = c.Identifier
	r.MatchedName = c.Name
	r.MatchedDistanceKm = &d
	r.Guess1 = nil
	r.Guess2 = nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	out.Latitude = clonePtr(r.Latitude)
	out.Longitude = clonePtr(r.Longitude)
	out.MatchedDistanceKm = clonePtr(r.MatchedDistanceKm)
	out.Guess1 = clonePtr(r.Guess1)
	out.Guess2 = clonePtr(r.Guess2)
	out.Day = clonePtr(r.Day)
	out.Month = clonePtr(r.Month)
	out.Year = clonePtr(r.Year)
	out.Date = clonePtr(r.Date)
	out.Match = clonePtr(r.Match)
	out.Labels = slices.Clone(r.Labels)
	out.Extra = maps.Clone(r.Extra)
	out.invalid = maps.Clone(r.invalid)

	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}
