// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package gazetteer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		kind      Kind
		wantErr   bool
		wantLines []string
	}{
		{
			name:  "valid gazetteer",
			input: "modern_name,latitude,longitude\nAvignon,43.9,4.8\nParis,,\n",
		},
		{
			name:      "missing column",
			input:     "modern_name,latitude\nAvignon,43.9\n",
			wantErr:   true,
			wantLines: []string{"longitude does not appear in this gazetteer."},
		},
		{
			name:      "out of range",
			input:     "modern_name,latitude,longitude\nA,91,0\nB,0,0\nC,-90,-181\nD,-95,200\n",
			wantErr:   true,
			wantLines: []string{"The following rows contain erroneous latitudes: 2, 5", "The following rows contain erroneous longitudes: 4, 5"},
		},
		{
			name:      "non numeric",
			input:     "modern_name,latitude,longitude\nA,north,0\nB,0,east\n",
			wantErr:   true,
			wantLines: []string{"The latitude column contains non-numeric values in rows: 2", "The longitude column contains non-numeric values in rows: 3"},
		},
		{
			name:  "itinerary without coordinates",
			input: "modern_name,day,month,year\nParis,1,5,1305\n",
			kind:  KindItinerary,
		},
		{
			name:      "itinerary without dates",
			input:     "modern_name,latitude,longitude\nParis,1,5\n",
			kind:      KindItinerary,
			wantErr:   true,
			wantLines: []string{"day does not appear in this itinerary."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Read(strings.NewReader(tt.input), "test", ReadOptions{Kind: tt.kind})
			require.NoError(t, err)

			err = c.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				assert.Zero(t, c.Diagnostics.Len())

				return
			}

			require.ErrorIs(t, err, ErrInvalidCollection)

			for _, line := range tt.wantLines {
				assert.Contains(t, c.Diagnostics.Lines(), line)
			}
		})
	}
}

func TestUnresolved(t *testing.T) {
	c := New("test", KindGazetteer, []*Record{
		{Name: "Avignon", Identifier: "2988507"},
		{Name: "Paris"},
		{},
		{Name: "Rome"},
	})

	assert.Equal(t, []int{1, 3}, c.Unresolved())
	assert.True(t, c.HasIdentifiers())
}

func TestCloneIsDeep(t *testing.T) {
	c := New("test", KindGazetteer, []*Record{
		{Name: "Paris", Latitude: ptr(48.8), Guess1: &Candidate{Name: "Paris 01"}, Labels: []string{"A"}},
	})

	clone := c.Clone()
	*clone.Records[0].Latitude = 0
	clone.Records[0].Guess1.Name = "changed"
	clone.Records[0].Labels[0] = "B"

	assert.InDelta(t, 48.8, *c.Records[0].Latitude, 1e-9)
	assert.Equal(t, "Paris 01", c.Records[0].Guess1.Name)
	assert.Equal(t, []string{"A"}, c.Records[0].Labels)
}

func TestDiagnosticsUnique(t *testing.T) {
	var d Diagnostics
	d.Add("a", "b", "a")
	d.Addf("row %d", 2)

	assert.Equal(t, []string{"a", "b", "a", "row 2"}, d.Lines())
	assert.Equal(t, []string{"a", "b", "row 2"}, d.Unique())
}

func TestAccept(t *testing.T) {
	r := &Record{Name: "Paris", Guess1: &Candidate{Name: "Paris 01", Identifier: "6618607", DistanceKm: 1.5}, Guess2: &Candidate{}}
	r.Accept(*r.Guess1)

	assert.Equal(t, "6618607", r.Identifier)
	assert.Equal(t, "Paris 01", r.MatchedName)
	assert.Nil(t, r.Guess1)
	assert.Nil(t, r.Guess2)
	assert.True(t, r.Resolved())
}
