// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package trips

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jcodagnone/gazetteer/gazetteer"
)

func header(mode DateMode) []string {
	var cols []string

	for _, prefix := range []string{"depart_", "arrive_"} {
		switch mode {
		case Exact:
			cols = append(cols, prefix+"date")
		case Month:
			cols = append(cols, prefix+"year", prefix+"month", prefix+"day")
		case MonthWithExact:
			cols = append(cols, prefix+"date", prefix+"year", prefix+"month", prefix+"day")
		}

		cols = append(cols, prefix+"loc", prefix+"id", prefix+"lat", prefix+"long")
	}

	if mode != Month {
		cols = append(cols, "travel_days")
	}

	return append(cols, "distance")
}

func stopCells(r *gazetteer.Record, mode DateMode) []string {
	var cells []string

	if mode != Month {
		cells = append(cells, r.Date.Format(gazetteer.DateLayout))
	}

	if mode != Exact {
		cells = append(cells, itoa(r.Year), itoa(r.Month), itoa(r.Day))
	}

	p := r.Point()

	return append(cells,
		r.Name,
		r.Identifier,
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
		strconv.FormatFloat(p.Lng, 'f', -1, 64),
	)
}

func itoa(n *int) string {
	if n == nil {
		return ""
	}

	return strconv.Itoa(*n)
}

// WriteCSV writes one line per trip.
func WriteCSV(w io.Writer, trips []Trip, mode DateMode) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(mode)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, t := range trips {
		row := append(stopCells(t.Origin, mode), stopCells(t.Destination, mode)...)
		if t.ElapsedDays != nil {
			row = append(row, strconv.Itoa(*t.ElapsedDays))
		}

		row = append(row, strconv.FormatFloat(t.DistanceKm, 'f', 1, 64))

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write trip: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// Save writes trips to path as CSV.
func Save(path string, trips []Trip, mode DateMode) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return WriteCSV(f, trips, mode)
}
