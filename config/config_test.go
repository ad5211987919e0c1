// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadJob(t *testing.T) {
	path := writeFile(t, "job.yaml", `
gazetteer:
  file: places.csv
  lookup: double
  compare:
    reference: known.csv
    save: both
itinerary:
  file: clement.csv
  trips:
    date_mode: month
    out: trips.csv
`)

	job, err := LoadJob(path)
	require.NoError(t, err)

	assert.Equal(t, "geonames", job.Provider)
	require.NotNil(t, job.Gazetteer)
	assert.Equal(t, "double", job.Gazetteer.Lookup)
	assert.Equal(t, "both", job.Gazetteer.Compare.Save)
	assert.Nil(t, job.Gazetteer.Label)
	require.NotNil(t, job.Itinerary.Trips)
	assert.Equal(t, "month", job.Itinerary.Trips.DateMode)
}

func TestLoadJobJSON(t *testing.T) {
	path := writeFile(t, "job.json", `{"provider":"google","itinerary":{"file":"a.csv","format_dates":true}}`)

	job, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, "google", job.Provider)
	assert.True(t, job.Itinerary.FormatDates)
}

func TestLoadJobErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown key",
			content: "gazetteer:\n  file: a.csv\n  lookups: single\n",
			want:    "lookups",
		},
		{
			name:    "bad provider",
			content: "provider: bing\ngazetteer:\n  file: a.csv\n",
			want:    "unknown provider",
		},
		{
			name:    "bad lookup mode",
			content: "gazetteer:\n  file: a.csv\n  lookup: triple\n",
			want:    "gazetteer.lookup",
		},
		{
			name:    "bad save",
			content: "gazetteer:\n  file: a.csv\n  compare:\n    reference: b.csv\n    save: all\n",
			want:    "gazetteer.compare.save",
		},
		{
			name:    "empty job",
			content: "provider: geonames\n",
			want:    "neither a gazetteer nor an itinerary",
		},
		{
			name:    "trips without output",
			content: "itinerary:\n  file: a.csv\n  trips:\n    date_mode: exact\n",
			want:    "itinerary.trips.out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadJob(writeFile(t, "job.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, WriteTemplate(path))
	require.Error(t, WriteTemplate(path), "an existing file is never overwritten")

	job, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, "gazetteer.csv", job.Gazetteer.File)
	assert.Equal(t, []string{"latitude", "longitude", "geoid"}, job.Itinerary.Attributes.Columns)
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv(EnvGeoNamesUsername, "demo")
	t.Setenv(EnvGoogleMapsAPIKey, "")

	creds := LoadCredentials()
	assert.Equal(t, "demo", creds.GeoNamesUsername)
}

func TestErrorsFileFor(t *testing.T) {
	assert.Equal(t, "data/places_errors.txt", ErrorsFileFor("data/places.csv"))
}
