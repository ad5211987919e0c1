// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package gazetteer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGazetteer = "\ufeffmodern_name,latitude,longitude,geoid,notes\n" +
	"Avignon,43.9493,4.8055,2988507.0,papal seat\n" +
	"Paris,48.8566,2.3522,,\n" +
	"Rome,north,12.4964,,\n" +
	"Lyon,45.76\n"

func TestRead(t *testing.T) {
	c, err := Read(strings.NewReader(sampleGazetteer), "sample", ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "sample", c.Name)
	assert.Equal(t, []string{"modern_name", "latitude", "longitude", "geoid", "notes"}, c.Columns)
	require.Len(t, c.Records, 4)

	avignon := c.Records[0]
	assert.Equal(t, "Avignon", avignon.Name)
	assert.Equal(t, "2988507", avignon.Identifier)
	assert.Equal(t, "papal seat", avignon.Extra["notes"])
	require.NotNil(t, avignon.Point())
	assert.InDelta(t, 43.9493, avignon.Point().Lat, 1e-9)

	paris := c.Records[1]
	assert.Empty(t, paris.Identifier)
	assert.Nil(t, paris.Extra)

	rome := c.Records[2]
	assert.Nil(t, rome.Latitude)
	assert.Nil(t, rome.Point())

	lyon := c.Records[3]
	assert.NotNil(t, lyon.Latitude)
	assert.Nil(t, lyon.Longitude)
}

func TestWriteRoundTrip(t *testing.T) {
	c, err := Read(strings.NewReader(sampleGazetteer), "sample", ReadOptions{})
	require.NoError(t, err)

	c.Records[1].Guess1 = &Candidate{Name: "Paris 01", Identifier: "6618607", DistanceKm: 1.5}
	match := true
	c.Records[0].Match = &match

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, c))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "modern_name,latitude,longitude,geoid,notes,guess1,geoid_guess1,g_dist1,match", lines[0])
	assert.Equal(t, "Avignon,43.9493,4.8055,2988507,papal seat,,,,True", lines[1])
	assert.Equal(t, "Paris,48.8566,2.3522,,,Paris 01,6618607,1.5,", lines[2])
	assert.Equal(t, "Rome,north,12.4964,,,,,,", lines[3], "unparseable cells are written back verbatim")

	again, err := Read(&buf, "sample", ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, c.Records[1].Guess1, again.Records[1].Guess1)
	assert.Equal(t, c.Records[0].Match, again.Records[0].Match)
}

func TestReadLatin1(t *testing.T) {
	// "Besalú" in ISO-8859-1
	input := []byte("modern_name,latitude,longitude\nBesal\xfa,42.2,2.7\n")

	c, err := Read(bytes.NewReader(input), "latin", ReadOptions{Encoding: "latin1"})
	require.NoError(t, err)
	require.Len(t, c.Records, 1)
	assert.Equal(t, "Besalú", c.Records[0].Name)

	_, err = Read(bytes.NewReader(input), "latin", ReadOptions{Encoding: "klingon"})
	assert.Error(t, err)
}

func TestReadItineraryNumbers(t *testing.T) {
	input := "modern_name,day,month,year\nParis,1.0,5,1305\nRome,,6.5,1305\n"

	c, err := Read(strings.NewReader(input), "itin", ReadOptions{Kind: KindItinerary})
	require.NoError(t, err)

	require.NotNil(t, c.Records[0].Day)
	assert.Equal(t, 1, *c.Records[0].Day)
	assert.Nil(t, c.Records[1].Day)
	assert.Nil(t, c.Records[1].Month)
	assert.Equal(t, "6.5", c.Records[1].cell(ColMonth))
}

func TestReadEmpty(t *testing.T) {
	_, err := Read(strings.NewReader(""), "empty", ReadOptions{})
	assert.Error(t, err)
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "places.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleGazetteer), 0o600))

	c, err := Load(path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "places", c.Name)

	out := filepath.Join(dir, "out.csv")
	require.NoError(t, Save(out, c))

	again, err := Load(out, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, c.Columns, again.Columns)
	assert.Len(t, again.Records, 4)
}
