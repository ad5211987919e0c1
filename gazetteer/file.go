// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package gazetteer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jcodagnone/gazetteer/utils/textutils"
	"golang.org/x/net/html/charset"
)

// Column names. They match the spreadsheets the tool has always produced so
// older files load unchanged.
const (
	ColName           = "modern_name"
	ColLatitude       = "latitude"
	ColLongitude      = "longitude"
	ColIdentifier     = "geoid"
	ColMatchedName    = "name_match"
	ColMatchedDist    = "geo_dist"
	ColGuess1         = "guess1"
	ColGuess1ID       = "geoid_guess1"
	ColGuess1Dist     = "g_dist1"
	ColGuess2         = "guess2"
	ColGuess2ID       = "geoid_guess2"
	ColGuess2Dist     = "g_dist2"
	ColMatch          = "match"
	ColExistingName   = "exist_name"
	ColReferenceName  = "reference_name"
	ColLabels         = "itin_list"
	ColDay            = "day"
	ColMonth          = "month"
	ColYear           = "year"
	ColDates          = "dates"
	ColGazetteerMatch = "gaz_match"
)

var knownColumns = []string{
	ColName, ColLatitude, ColLongitude, ColIdentifier, ColMatchedName, ColMatchedDist,
	ColGuess1, ColGuess1ID, ColGuess1Dist, ColGuess2, ColGuess2ID, ColGuess2Dist,
	ColMatch, ColExistingName, ColReferenceName, ColLabels,
	ColDay, ColMonth, ColYear, ColDates, ColGazetteerMatch,
}

func isKnownColumn(col string) bool {
	return slices.Contains(knownColumns, col)
}

// ReadOptions controls how a file is decoded.
type ReadOptions struct {
	Kind Kind
	// Encoding is a WHATWG label such as "latin1" or "windows-1252". Empty
	// means UTF-8.
	Encoding string
}

// Load reads a collection from a CSV file. The collection is named after the
// file without its extension.
func Load(path string, opts ReadOptions) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return Read(f, name, opts)
}

// Read decodes a CSV stream. Empty cells are null. Rows shorter than the
// header are padded with nulls and unknown columns are kept verbatim.
func Read(r io.Reader, name string, opts ReadOptions) (*Collection, error) {
	if opts.Encoding != "" && !strings.EqualFold(opts.Encoding, "utf-8") && !strings.EqualFold(opts.Encoding, "utf8") {
		decoded, err := charset.NewReaderLabel(opts.Encoding, r)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", opts.Encoding, err)
		}

		r = decoded
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s is empty", name)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", name, err)
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	c := &Collection{
		Name:        name,
		Kind:        opts.Kind,
		Columns:     header,
		Diagnostics: &Diagnostics{},
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		c.Records = append(c.Records, c.parseRow(header, row))
	}

	return c, nil
}

func (c *Collection) parseRow(header, row []string) *Record {
	r := &Record{}
	index := len(c.Records)

	for i, col := range header {
		if i >= len(row) {
			break
		}

		v := strings.TrimSpace(row[i])
		if v == "" {
			continue
		}

		if !r.setCell(col, v) && (col == ColLatitude || col == ColLongitude) {
			c.nonNumeric = append(c.nonNumeric, cellDefect{row: RowNumber(index), column: col})
		}
	}

	return r
}

// setCell stores the text of one cell. It returns false when the value could
// not be parsed; the text is then kept verbatim for writing back.
func (r *Record) setCell(col, v string) bool {
	switch col {
	case ColName:
		r.Name = v
	case ColLatitude:
		r.Latitude = r.floatCell(col, v)

		return r.Latitude != nil
	case ColLongitude:
		r.Longitude = r.floatCell(col, v)

		return r.Longitude != nil
	case ColIdentifier:
		r.Identifier = normalizeIdentifier(v)
	case ColMatchedName:
		r.MatchedName = v
	case ColMatchedDist:
		r.MatchedDistanceKm = r.floatCell(col, v)

		return r.MatchedDistanceKm != nil
	case ColGuess1, ColGuess1ID, ColGuess1Dist:
		r.Guess1 = setCandidate(r.Guess1, col == ColGuess1, col == ColGuess1ID, v)
	case ColGuess2, ColGuess2ID, ColGuess2Dist:
		r.Guess2 = setCandidate(r.Guess2, col == ColGuess2, col == ColGuess2ID, v)
	case ColMatch:
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.keepInvalid(col, v)

			return false
		}

		r.Match = &b
	case ColExistingName:
		r.ExistingName = v
	case ColReferenceName:
		r.ReferenceName = v
	case ColLabels:
		r.Labels = textutils.SplitLabels(v)
	case ColDay:
		r.Day = r.intCell(col, v)

		return r.Day != nil
	case ColMonth:
		r.Month = r.intCell(col, v)

		return r.Month != nil
	case ColYear:
		r.Year = r.intCell(col, v)

		return r.Year != nil
	case ColDates:
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			r.keepInvalid(col, v)

			return false
		}

		r.Date = &t
	case ColGazetteerMatch:
		r.GazetteerMatch = v
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}

		r.Extra[col] = v
	}

	return true
}

func setCandidate(c *Candidate, isName, isID bool, v string) *Candidate {
	if c == nil {
		c = &Candidate{}
	}

	switch {
	case isName:
		c.Name = v
	case isID:
		c.Identifier = normalizeIdentifier(v)
	default:
		if f, ok := parseFloat(v); ok {
			c.DistanceKm = f
		}
	}

	return c
}

func (r *Record) keepInvalid(col, v string) {
	if r.invalid == nil {
		r.invalid = make(map[string]string)
	}

	r.invalid[col] = v
}

func (r *Record) floatCell(col, v string) *float64 {
	f, ok := parseFloat(v)
	if !ok {
		r.keepInvalid(col, v)

		return nil
	}

	return &f
}

// intCell accepts "14" as well as "14.0", which spreadsheets write for integer
// columns holding blanks.
func (r *Record) intCell(col, v string) *int {
	f, ok := parseFloat(v)
	if !ok || f != math.Trunc(f) {
		r.keepInvalid(col, v)

		return nil
	}

	n := int(f)

	return &n
}

func parseFloat(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}

// normalizeIdentifier drops the ".0" suffix of numeric identifiers saved by
// spreadsheets as floats.
func normalizeIdentifier(v string) string {
	if s, ok := strings.CutSuffix(v, ".0"); ok {
		if _, err := strconv.ParseUint(s, 10, 64); err == nil {
			return s
		}
	}

	return v
}

// Save writes c to path as CSV.
func Save(path string, c *Collection) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return Write(f, c)
}

// Write encodes c as CSV. Loaded columns come first in their original order,
// followed by the known columns some record now holds a value for.
func Write(w io.Writer, c *Collection) error {
	columns := c.outputColumns()

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(columns))
	for _, r := range c.Records {
		for i, col := range columns {
			row[i] = r.cell(col)
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

func (c *Collection) outputColumns() []string {
	columns := append([]string(nil), c.Columns...)
	seen := make(map[string]bool, len(columns))

	for _, col := range columns {
		seen[col] = true
	}

	for _, col := range knownColumns {
		if seen[col] {
			continue
		}

		for _, r := range c.Records {
			if r.cell(col) != "" {
				columns = append(columns, col)
				seen[col] = true

				break
			}
		}
	}

	var extra []string

	for _, r := range c.Records {
		for col := range r.Extra {
			if !seen[col] {
				extra = append(extra, col)
				seen[col] = true
			}
		}
	}

	slices.Sort(extra)

	return append(columns, extra...)
}

func (r *Record) cell(col string) string {
	if v, ok := r.invalid[col]; ok {
		return v
	}

	switch col {
	case ColName:
		return r.Name
	case ColLatitude:
		return formatFloat(r.Latitude)
	case ColLongitude:
		return formatFloat(r.Longitude)
	case ColIdentifier:
		return r.Identifier
	case ColMatchedName:
		return r.MatchedName
	case ColMatchedDist:
		return formatFloat(r.MatchedDistanceKm)
	case ColGuess1, ColGuess1ID, ColGuess1Dist:
		return candidateCell(r.Guess1, col == ColGuess1, col == ColGuess1ID)
	case ColGuess2, ColGuess2ID, ColGuess2Dist:
		return candidateCell(r.Guess2, col == ColGuess2, col == ColGuess2ID)
	case ColMatch:
		if r.Match == nil {
			return ""
		}

		if *r.Match {
			return "True"
		}

		return "False"
	case ColExistingName:
		return r.ExistingName
	case ColReferenceName:
		return r.ReferenceName
	case ColLabels:
		return textutils.JoinLabels(r.Labels)
	case ColDay:
		return formatInt(r.Day)
	case ColMonth:
		return formatInt(r.Month)
	case ColYear:
		return formatInt(r.Year)
	case ColDates:
		if r.Date == nil {
			return ""
		}

		return r.Date.Format(DateLayout)
	case ColGazetteerMatch:
		return r.GazetteerMatch
	default:
		return r.Extra[col]
	}
}

func candidateCell(c *Candidate, isName, isID bool) string {
	if c == nil {
		return ""
	}

	switch {
	case isName:
		return c.Name
	case isID:
		return c.Identifier
	default:
		return strconv.FormatFloat(c.DistanceKm, 'f', -1, 64)
	}
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}

	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}

	return strconv.Itoa(*n)
}
