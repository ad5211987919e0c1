// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package curation

import (
	"testing"

	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterMembers(t *testing.T) {
	// a chain: each point ~0.9 km from the next, ends ~1.8 km apart
	members := []*ClusterMember{
		{Index: 0, Name: "a", Point: spatial.Point{Lat: 0, Lng: 0}},
		{Index: 1, Name: "far", Point: spatial.Point{Lat: 10, Lng: 10}},
		{Index: 2, Name: "c", Point: spatial.Point{Lat: 0, Lng: 0.0162}},
		{Index: 3, Name: "b", Point: spatial.Point{Lat: 0, Lng: 0.0081}},
	}

	clusters := clusterMembers(members, 1)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0], 3)
	assert.Len(t, clusters[1], 1)
	assert.Equal(t, "far", clusters[1][0].Name)
}

func TestNewCluster(t *testing.T) {
	members := []*ClusterMember{
		{Index: 4, Row: 6, Name: "Saint-Remy", Point: spatial.Point{Lat: 43.789, Lng: 4.831}},
		{Index: 1, Row: 3, Name: "Saint-Rémy", Point: spatial.Point{Lat: 43.788, Lng: 4.832}},
	}

	c := newCluster(members)
	assert.Equal(t, "Saint-Rémy", c.Principal)
	assert.True(t, c.Members[0].IsPrincipal)
	assert.False(t, c.Members[1].IsPrincipal)
	assert.Zero(t, c.Members[0].DistanceFromPrincipal)
	assert.Greater(t, c.Members[1].DistanceFromPrincipal, 0.0)

	require.Len(t, c.Pairs, 1)
	assert.Equal(t, 3, c.Pairs[0].A)
	assert.Equal(t, 6, c.Pairs[0].B)
	assert.InDelta(t, 1.0, c.Pairs[0].Score, 1e-9)
}

func TestNearDuplicates(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	records := []*gazetteer.Record{
		place("Avignon", 43.9493, 4.8055),
		place("Arles", 43.6766, 4.6278),
		place("Avignon (pont)", 43.9539, 4.8047),
		{Name: "Nowhere"},
		place("Arelate", 43.6770, 4.6290),
		place("Tarascon", 43.8058, 4.6603),
	}

	ds, err := repo.SaveCollection(gazetteer.New("provence", gazetteer.KindGazetteer, records))
	require.NoError(t, err)

	clusters, err := repo.NearDuplicates(ds.ID, 0)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	assert.Equal(t, "Avignon", clusters[0].Principal)
	assert.Equal(t, 2, clusters[0].Members[0].Row)
	assert.Equal(t, 4, clusters[0].Members[1].Row)

	assert.Equal(t, "Arles", clusters[1].Principal)
	assert.Equal(t, "Arelate", clusters[1].Members[1].Name)
	assert.InDelta(t, 43.6770, clusters[1].Members[1].Point.Lat, 1e-9)

	wide, err := repo.NearDuplicates(ds.ID, 50)
	require.NoError(t, err)
	require.Len(t, wide, 1)
	assert.Len(t, wide[0].Members, 5)
}
