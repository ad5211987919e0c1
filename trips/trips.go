// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package trips turns a dated itinerary into point to point trips.
//
// Records are ordered by date with a stable sort. A run of consecutive
// records with the same name is one stay: the trip leaves from the last
// record of a run and arrives at the first record of the next one. The final
// stay produces no trip.
package trips

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jcodagnone/gazetteer/gazetteer"
)

// ErrNoCoordinates is returned for itineraries without coordinate columns.
var ErrNoCoordinates = errors.New("itinerary lacks coordinates")

// DateMode selects which records are dated enough to take part.
type DateMode int

const (
	// Exact uses records with a full calendar date.
	Exact DateMode = iota
	// Month uses records with at least a year and a month. Elapsed days are
	// not computed.
	Month
	// MonthWithExact uses records with a full date and also writes their
	// calendar components.
	MonthWithExact
)

// ParseDateMode parses exact, month or month_with_exact.
func ParseDateMode(s string) (DateMode, error) {
	switch strings.ToLower(s) {
	case "", "exact", "full_date":
		return Exact, nil
	case "month", "months":
		return Month, nil
	case "month_with_exact", "all":
		return MonthWithExact, nil
	default:
		return Exact, fmt.Errorf("unknown date mode %q (want exact, month or month_with_exact)", s)
	}
}

func (m DateMode) String() string {
	switch m {
	case Month:
		return "month"
	case MonthWithExact:
		return "month_with_exact"
	default:
		return "exact"
	}
}

// Trip is a move between two consecutive stays.
type Trip struct {
	Origin      *gazetteer.Record
	Destination *gazetteer.Record
	// OriginRow and DestinationRow are the row numbers in the itinerary.
	OriginRow      int
	DestinationRow int
	// ElapsedDays is nil in Month mode.
	ElapsedDays *int
	DistanceKm  float64
}

// Result holds the trips and the rows left out of them.
type Result struct {
	Trips []Trip
	// Excluded holds the row numbers of named records lacking a usable date
	// or coordinates.
	Excluded []int
	Messages []string
}

type stop struct {
	row    int
	record *gazetteer.Record
}

// Segment computes the trips of an itinerary. In the full date modes the dates
// are formed first when the itinerary has none. The records of c are not
// modified otherwise.
func Segment(c *gazetteer.Collection, mode DateMode) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if !c.HasCoordinates() {
		c.Diagnostics.Add(`This itinerary is lacking coordinates; please create a "latitude" and "longitude" column before proceeding.`)

		return nil, fmt.Errorf("%w: %s", ErrNoCoordinates, c.Name)
	}

	if mode != Month && !c.HasDates() {
		c.FormatDates()
	}

	result := &Result{}

	var (
		stops         []stop
		undated       []int
		undatedNames  []string
		noCoordinates []int
	)

	for i, r := range c.Records {
		if r.Name == "" {
			continue
		}

		row := gazetteer.RowNumber(i)

		if !dated(r, mode) {
			undated = append(undated, row)
			if !slices.Contains(undatedNames, r.Name) {
				undatedNames = append(undatedNames, r.Name)
			}

			continue
		}

		if r.Point() == nil {
			noCoordinates = append(noCoordinates, row)

			continue
		}

		stops = append(stops, stop{row: row, record: r})
	}

	if len(undated) > 0 {
		result.Messages = append(result.Messages, "The following places are listed with no dates:")
		for _, name := range undatedNames {
			result.Messages = append(result.Messages, name+",")
		}

		result.Messages = append(result.Messages,
			"The locations are in the following rows:",
			gazetteer.FormatRows(undated)+".")
	}

	if len(noCoordinates) > 0 {
		result.Messages = append(result.Messages, "The following rows have no coordinates: "+gazetteer.FormatRows(noCoordinates))
	}

	result.Excluded = append(undated, noCoordinates...)
	slices.Sort(result.Excluded)

	slices.SortStableFunc(stops, func(a, b stop) int {
		return compareDates(a.record, b.record, mode)
	})

	result.Trips = pair(stops, mode)
	c.Diagnostics.Add(result.Messages...)

	return result, nil
}

func dated(r *gazetteer.Record, mode DateMode) bool {
	if mode == Month {
		return r.Year != nil && r.Month != nil
	}

	return r.Date != nil
}

func compareDates(a, b *gazetteer.Record, mode DateMode) int {
	if mode == Month {
		return cmp.Or(cmp.Compare(*a.Year, *b.Year), cmp.Compare(*a.Month, *b.Month))
	}

	return a.Date.Compare(*b.Date)
}

// pair links the last stop of each run of equal names with the first stop of
// the next run.
func pair(stops []stop, mode DateMode) []Trip {
	var trips []Trip

	for i := 0; i+1 < len(stops); i++ {
		origin, next := stops[i], stops[i+1]
		if origin.record.Name == next.record.Name {
			continue
		}

		from, to := origin.record.Point(), next.record.Point()
		trip := Trip{
			Origin:         origin.record,
			Destination:    next.record,
			OriginRow:      origin.row,
			DestinationRow: next.row,
			DistanceKm:     from.HaversineDistance(to),
		}

		if mode != Month {
			days := elapsedDays(*origin.record.Date, *next.record.Date)
			trip.ElapsedDays = &days
		}

		trips = append(trips, trip)
	}

	return trips
}

const secondsPerDay = 24 * 60 * 60

// elapsedDays counts calendar days between two UTC midnights. It works on Unix
// seconds because time.Duration overflows past about 292 years.
func elapsedDays(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / secondsPerDay)
}
