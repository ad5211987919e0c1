// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/similarity"
)

// ExactMatch is written in GazetteerMatch when the gazetteer holds the very
// same name.
const ExactMatch = "exact match"

// MinFuzzyScore is the score a gazetteer name must exceed to be suggested.
const MinFuzzyScore = 0.5

// FuzzyNameMatch sets GazetteerMatch on every named itinerary record to the
// best scoring gazetteer name. Perfect scores are written as ExactMatch and
// records with no name scoring above MinFuzzyScore are left blank.
func FuzzyNameMatch(itin, gaz *gazetteer.Collection) {
	names := make([]string, len(gaz.Records))
	for i, r := range gaz.Records {
		names[i] = r.Name
	}

	for _, r := range itin.Records {
		r.GazetteerMatch = ""
		if r.Name == "" {
			continue
		}

		m, ok := similarity.BestMatch(r.Name, names)

		switch {
		case !ok || m.Score <= MinFuzzyScore:
		case m.Score == 1:
			r.GazetteerMatch = ExactMatch
		default:
			r.GazetteerMatch = m.Name
		}
	}

	if !itin.HasColumn(gazetteer.ColGazetteerMatch) {
		itin.Columns = append(itin.Columns, gazetteer.ColGazetteerMatch)
	}
}
