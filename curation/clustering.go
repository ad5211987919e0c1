// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package curation

import (
	"fmt"
	"log"
	"sort"

	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/similarity"
	"github.com/jcodagnone/gazetteer/spatial"
)

// DefaultClusterRadiusKm is the radius used when none is given.
const DefaultClusterRadiusKm = 1.0

// ClusterMember is one record of a near-duplicate cluster.
type ClusterMember struct {
	Index                 int           `json:"index"`
	Row                   int           `json:"row"`
	Name                  string        `json:"name"`
	Identifier            string        `json:"identifier,omitempty"`
	Point                 spatial.Point `json:"point"`
	DistanceFromPrincipal float64       `json:"distance_from_principal"`
	IsPrincipal           bool          `json:"is_principal"`
}

// NamePair is the name similarity between two members of a cluster.
type NamePair struct {
	A     int     `json:"a"`
	B     int     `json:"b"`
	Score float64 `json:"score"`
}

// Cluster groups records closer than the clustering radius. The principal is
// the first member in row order.
type Cluster struct {
	Principal string           `json:"principal"`
	Members   []*ClusterMember `json:"members"`
	Pairs     []NamePair       `json:"pairs"`
}

// clusterMembers groups members into clusters of single-link distance under
// threshold kilometers.
func clusterMembers(members []*ClusterMember, threshold float64) [][]*ClusterMember {
	clusters := make([][]*ClusterMember, 0, len(members))

	visited := make([]bool, len(members))

	for i, m1 := range members {
		if visited[i] {
			continue
		}

		cluster := []*ClusterMember{m1}
		visited[i] = true

		// grow until no unvisited member is close to any member of the cluster
		for grown := true; grown; {
			grown = false

			for j, m2 := range members {
				if visited[j] {
					continue
				}

				for _, member := range cluster {
					if m2.Point.HaversineDistance(&member.Point) <= threshold {
						cluster = append(cluster, m2)
						visited[j] = true
						grown = true

						break
					}
				}
			}
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}

// newCluster orders members by row, marks the principal and scores every name
// pair.
func newCluster(members []*ClusterMember) *Cluster {
	sort.Slice(members, func(i, j int) bool {
		return members[i].Index < members[j].Index
	})

	principal := members[0]
	principal.IsPrincipal = true

	for _, m := range members {
		m.DistanceFromPrincipal = principal.Point.HaversineDistance(&m.Point)
	}

	c := &Cluster{Principal: principal.Name, Members: members}

	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			c.Pairs = append(c.Pairs, NamePair{
				A:     members[i].Row,
				B:     members[j].Row,
				Score: similarity.Score(members[i].Name, members[j].Name),
			})
		}
	}

	return c
}

func (r *sqlRepository) NearDuplicates(id string, radiusKm float64) ([]*Cluster, error) {
	if _, err := r.GetDataset(id); err != nil {
		return nil, err
	}

	if radiusKm <= 0 {
		radiusKm = DefaultClusterRadiusKm
	}

	rows, err := r.db.Query(`
		SELECT row_index, name, identifier, point
		FROM records
		WHERE dataset_id = ? AND point IS NOT NULL
		ORDER BY h3_res5, row_index
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*ClusterMember

	for rows.Next() {
		m := &ClusterMember{}

		var ident *string

		if err := rows.Scan(&m.Index, &m.Name, &ident, &m.Point); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		if ident != nil {
			m.Identifier = *ident
		}

		m.Row = gazetteer.RowNumber(m.Index)
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Printf("Fetched %d located records for clustering", len(members))

	var result []*Cluster

	for _, group := range clusterMembers(members, radiusKm) {
		if len(group) < 2 {
			continue
		}

		result = append(result, newCluster(group))
	}

	// largest first, then by position in the file
	sort.SliceStable(result, func(i, j int) bool {
		if len(result[i].Members) != len(result[j].Members) {
			return len(result[i].Members) > len(result[j].Members)
		}

		return result[i].Members[0].Index < result[j].Members[0].Index
	})

	log.Printf("Returning %d clusters within %.2f km", len(result), radiusKm)

	return result, nil
}
