// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package gazetteer

import "time"

// DateLayout is the layout of the dates column.
const DateLayout = "2006-01-02"

// CalendarDate forms a date from its components. ok is false when any
// component is missing or they do not name a real day.
func CalendarDate(year, month, day *int) (time.Time, bool) {
	if year == nil || month == nil || day == nil {
		return time.Time{}, false
	}

	y, m, d := *year, *month, *day
	if y < 1 || y > 9999 || m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}

	return t, true
}

// DateReport lists the rows whose date could not be formed.
type DateReport struct {
	Incomplete []int
	Invalid    []int
}

// FormatDates sets Date on every record from its day, month and year. Rows
// with a missing component and rows naming an impossible day keep a nil Date
// and are reported separately, with row numbers.
func (c *Collection) FormatDates() DateReport {
	var report DateReport

	for i, r := range c.Records {
		r.Date = nil
		delete(r.invalid, ColDates)

		if r.Year == nil || r.Month == nil || r.Day == nil {
			report.Incomplete = append(report.Incomplete, RowNumber(i))

			continue
		}

		t, ok := CalendarDate(r.Year, r.Month, r.Day)
		if !ok {
			report.Invalid = append(report.Invalid, RowNumber(i))

			continue
		}

		r.Date = &t
	}

	c.addColumn(ColDates)

	if len(report.Incomplete) > 0 {
		c.Diagnostics.Add("The following dates are incomplete: " + FormatRows(report.Incomplete))
	}

	if len(report.Invalid) > 0 {
		c.Diagnostics.Add("The following dates contain errors: " + FormatRows(report.Invalid))
	}

	return report
}

// HasDates reports whether at least one record carries a formed date.
func (c *Collection) HasDates() bool {
	for _, r := range c.Records {
		if r.Date != nil {
			return true
		}
	}

	return false
}
