// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jcodagnone/gazetteer/config"
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorePairs(t *testing.T) {
	var out bytes.Buffer

	err := scorePairs(strings.NewReader("Paris\tPariz\nParis\nAlbalate\tAlbalate de Cinca\nMurcia\tMurcia la\n"), &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Paris\tPariz\t0.800\ttrue\t1", lines[0])
	assert.Contains(t, lines[1], "expected two tab separated names")
	assert.Equal(t, "Albalate\tAlbalate de Cinca\t0.640\tfalse\t9", lines[2])
	assert.Equal(t, "Murcia\tMurcia la\t0.800\ttrue\t3", lines[3])
}

func TestWriteDiagnostics(t *testing.T) {
	d := &gazetteer.Diagnostics{}
	d.Add("first", "second", "first")

	var out bytes.Buffer
	require.NoError(t, writeDiagnostics(&out, d, itinerarySignOff))
	assert.Equal(t, "first\nsecond\nHave a nice day!\n", out.String())

	out.Reset()
	require.NoError(t, writeDiagnostics(&out, &gazetteer.Diagnostics{}, gazetteerSignOff))
	assert.Equal(t, "So many places to visit!\n", out.String())
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		out, input, suffix string
		want               string
	}{
		{"", "data/places.csv", "processed", "data/places_processed.csv"},
		{"", "places", "trips", "places_trips.csv"},
		{"custom.csv", "places.csv", "processed", "custom.csv"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, outputPath(tt.out, tt.input, tt.suffix))
	}
}

func TestErrorsPath(t *testing.T) {
	job := &config.Job{ErrorsFile: "errors.txt"}

	assert.Equal(t, "errors.txt", errorsPath(job, "itin.csv", true))
	assert.Equal(t, config.ErrorsFileFor("itin.csv"), errorsPath(job, "itin.csv", false))
	assert.Equal(t, config.ErrorsFileFor("itin.csv"), errorsPath(&config.Job{}, "itin.csv", true))
}

func TestRunItineraryJob(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "itin.csv")

	require.NoError(t, os.WriteFile(input, []byte(`modern_name,day,month,year,latitude,longitude
Paris,1,3,1305,48.8566,2.3522
Paris,2,3,1305,48.8566,2.3522
Rome,11,3,1305,41.9028,12.4964
Orange,,3,1305,44.14,4.81
`), 0o600))

	job := &config.Job{
		Provider:   "geonames",
		ErrorsFile: filepath.Join(dir, "errors.txt"),
		Itinerary: &config.ItineraryJob{
			File:        input,
			FormatDates: true,
			ToGazetteer: filepath.Join(dir, "places.csv"),
			Trips:       &config.TripsJob{DateMode: "exact", Out: filepath.Join(dir, "trips.csv")},
		},
	}

	require.NoError(t, runJob(context.Background(), job))

	trips, err := os.ReadFile(filepath.Join(dir, "trips.csv"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(trips)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "depart_date,depart_loc"), lines[0])
	assert.Contains(t, lines[1], "Paris")
	assert.Contains(t, lines[1], "Rome")

	places, err := gazetteer.Load(filepath.Join(dir, "places.csv"), gazetteer.ReadOptions{Kind: gazetteer.KindGazetteer})
	require.NoError(t, err)
	assert.Equal(t, 3, places.Len())

	processed, err := gazetteer.Load(filepath.Join(dir, "itin_processed.csv"), gazetteer.ReadOptions{Kind: gazetteer.KindItinerary})
	require.NoError(t, err)
	require.NotNil(t, processed.Records[0].Date)
	assert.Equal(t, "1305-03-01", processed.Records[0].Date.Format(gazetteer.DateLayout))

	errs, err := os.ReadFile(job.ErrorsFile)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(errs), itinerarySignOff+"\n"))
	assert.Contains(t, string(errs), "Orange")
}

func TestRunGazetteerJobRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "gaz.csv")

	require.NoError(t, os.WriteFile(input, []byte("modern_name,latitude,longitude\nAvignon,95,4.81\n"), 0o600))

	job := &config.Job{
		ErrorsFile: filepath.Join(dir, "errors.txt"),
		Gazetteer:  &config.GazetteerJob{File: input, Lookup: "single"},
	}

	err := runJob(context.Background(), job)
	require.ErrorIs(t, err, gazetteer.ErrInvalidCollection)

	_, err = os.Stat(filepath.Join(dir, "gaz_processed.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	errs, err := os.ReadFile(job.ErrorsFile)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(errs), gazetteerSignOff+"\n"))
}
