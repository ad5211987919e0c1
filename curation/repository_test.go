// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package curation

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sql.DB, Repository) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	repo := NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return db, repo
}

func place(name string, lat, lng float64) *gazetteer.Record {
	return &gazetteer.Record{Name: name, Latitude: &lat, Longitude: &lng}
}

// testCollection has a resolved row, a row with both guesses, a row with a
// second guess only and a row nobody found.
func testCollection() *gazetteer.Collection {
	avignon := place("Avignon", 43.9493, 4.8055)
	avignon.Identifier = "2996882"

	arles := place("Arles", 43.6766, 4.6278)
	arles.Guess1 = &gazetteer.Candidate{Name: "Trinquetaille", Identifier: "2972328", DistanceKm: 0.8}
	arles.Guess2 = &gazetteer.Candidate{Name: "Arles", Identifier: "3036938", DistanceKm: 1.2}

	nimes := place("Nimes", 43.8367, 4.3601)
	nimes.Guess2 = &gazetteer.Candidate{Name: "Nîmes", Identifier: "2990363", DistanceKm: 0.3}

	lost := place("Lost Abbey", 44.1, 4.9)

	c := gazetteer.New("provence", gazetteer.KindGazetteer, []*gazetteer.Record{avignon, arles, nimes, lost})
	c.Columns = append(c.Columns, gazetteer.ColIdentifier)

	return c
}

func TestCreateSchema(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	for _, table := range []string{"datasets", "records", "reviews"} {
		var name string

		err := db.QueryRow("SELECT table_name FROM information_schema.tables WHERE table_name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("Table %s not created: %v", table, err)
		}
	}
}

func TestSaveAndLoadCollection(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	c := testCollection()

	ds, err := repo.SaveCollection(c)
	require.NoError(t, err)
	assert.NotEmpty(t, ds.ID)
	assert.Equal(t, "provence", ds.Name)
	assert.Equal(t, "gazetteer", ds.Kind)
	assert.Equal(t, 4, ds.Records)

	got, err := repo.LoadCollection(ds.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Kind, got.Kind)
	assert.Equal(t, c.Columns, got.Columns)

	if diff := cmp.Diff(c.Records, got.Records, cmp.AllowUnexported(gazetteer.Record{})); diff != "" {
		t.Errorf("LoadCollection() records mismatch (-want +got):\n%s", diff)
	}

	var cell sql.NullInt64

	err = db.QueryRow(`SELECT h3_res8 FROM records WHERE dataset_id = ? AND row_index = 0`, ds.ID).Scan(&cell)
	require.NoError(t, err)
	assert.True(t, cell.Valid)
}

func TestSaveCollectionWithoutCoordinates(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	day, month, year := 2, 3, 1305
	itin := gazetteer.New("voyage", gazetteer.KindItinerary, []*gazetteer.Record{
		{Name: "Paris", Day: &day, Month: &month, Year: &year},
	})

	ds, err := repo.SaveCollection(itin)
	require.NoError(t, err)

	got, err := repo.LoadCollection(ds.ID)
	require.NoError(t, err)
	assert.Equal(t, gazetteer.KindItinerary, got.Kind)
	assert.Nil(t, got.Records[0].Point())
	assert.Equal(t, 1305, *got.Records[0].Year)
}

func TestListDatasets(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	_, err := repo.SaveCollection(testCollection())
	require.NoError(t, err)

	other := testCollection()
	other.Name = "languedoc"
	_, err = repo.SaveCollection(other)
	require.NoError(t, err)

	datasets, err := repo.ListDatasets()
	require.NoError(t, err)
	require.Len(t, datasets, 2)

	names := []string{datasets[0].Name, datasets[1].Name}
	assert.ElementsMatch(t, []string{"provence", "languedoc"}, names)
}

func TestGetDatasetNotFound(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	_, err := repo.GetDataset("missing")
	assert.True(t, errors.Is(err, ErrDatasetNotFound))

	_, err = repo.LoadCollection("missing")
	assert.True(t, errors.Is(err, ErrDatasetNotFound))
}

func TestReviewQueue(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	ds, err := repo.SaveCollection(testCollection())
	require.NoError(t, err)

	items, err := repo.ReviewQueue(ds.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Index)
	assert.Equal(t, 3, items[0].Row)
	assert.Equal(t, "Arles", items[0].Record.Name)
	assert.Equal(t, "Nimes", items[1].Record.Name)

	page, err := repo.ReviewQueue(ds.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Nimes", page[0].Record.Name)
}

func TestDecideAccept(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	ds, err := repo.SaveCollection(testCollection())
	require.NoError(t, err)

	rec, err := repo.Decide(&Review{DatasetID: ds.ID, Index: 1, Tier: 2, Decision: DecisionAccept, Reviewer: "ana"})
	require.NoError(t, err)
	assert.Equal(t, "3036938", rec.Identifier)
	assert.Equal(t, "Arles", rec.MatchedName)
	assert.Nil(t, rec.Guess1)
	assert.Nil(t, rec.Guess2)

	c, err := repo.LoadCollection(ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "3036938", c.Records[1].Identifier)
	assert.InDelta(t, 1.2, *c.Records[1].MatchedDistanceKm, 1e-9)

	items, err := repo.ReviewQueue(ds.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Nimes", items[0].Record.Name)

	reviews, err := repo.ListReviews(ds.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, DecisionAccept, reviews[0].Decision)
	assert.Equal(t, "3036938", reviews[0].Candidate.Identifier)
	assert.Equal(t, "ana", reviews[0].Reviewer)
}

func TestDecideReject(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	ds, err := repo.SaveCollection(testCollection())
	require.NoError(t, err)

	rec, err := repo.Decide(&Review{DatasetID: ds.ID, Index: 1, Tier: 1, Decision: DecisionReject, Reviewer: "ana"})
	require.NoError(t, err)
	assert.False(t, rec.Resolved())
	assert.Nil(t, rec.Guess1)
	require.NotNil(t, rec.Guess2)

	// still queued on its second guess
	items, err := repo.ReviewQueue(ds.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = repo.Decide(&Review{DatasetID: ds.ID, Index: 2, Tier: 2, Decision: DecisionReject, Reviewer: "ana"})
	require.NoError(t, err)

	items, err = repo.ReviewQueue(ds.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Arles", items[0].Record.Name)
}

func TestDecideErrors(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	ds, err := repo.SaveCollection(testCollection())
	require.NoError(t, err)

	tests := []struct {
		name   string
		review *Review
		want   error
	}{
		{
			name:   "empty tier",
			review: &Review{DatasetID: ds.ID, Index: 2, Tier: 1, Decision: DecisionAccept, Reviewer: "ana"},
			want:   ErrNoGuess,
		},
		{
			name:   "no such row",
			review: &Review{DatasetID: ds.ID, Index: 40, Tier: 1, Decision: DecisionAccept, Reviewer: "ana"},
			want:   ErrRecordNotFound,
		},
		{
			name:   "no such dataset",
			review: &Review{DatasetID: "missing", Index: 0, Tier: 1, Decision: DecisionAccept, Reviewer: "ana"},
			want:   ErrDatasetNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Decide(tt.review)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decide() error = %v, want %v", err, tt.want)
			}
		})
	}

	_, err = repo.Decide(&Review{DatasetID: ds.ID, Index: 1, Tier: 1, Decision: "maybe", Reviewer: "ana"})
	assert.Error(t, err)

	reviews, err := repo.ListReviews(ds.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestProgress(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	ds, err := repo.SaveCollection(testCollection())
	require.NoError(t, err)

	p, err := repo.Progress(ds.ID)
	require.NoError(t, err)
	assert.Equal(t, &Progress{Total: 4, Resolved: 1, PendingReview: 2, Unresolved: 1, Percentage: 25}, p)
}
