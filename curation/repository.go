// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package curation stores collections in DuckDB and supports the manual side
// of the workflow: reviewing guesses and spotting near-duplicate places.
package curation

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/spatial"
)

var (
	// ErrDatasetNotFound is returned when no dataset has the requested id.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrRecordNotFound is returned when the dataset has no record at the index.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNoGuess is returned when a review targets an empty guess tier.
	ErrNoGuess = errors.New("record has no guess for that tier")
)

// Dataset describes a stored collection.
type Dataset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Columns   []string  `json:"columns"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewItem is a stored record without identifier that holds at least one
// guess.
type ReviewItem struct {
	Index  int               `json:"index"`
	Row    int               `json:"row"`
	Record *gazetteer.Record `json:"record"`
}

// Review is a reviewer decision on a guess.
type Review struct {
	ID        int                 `json:"id"`
	DatasetID string              `json:"dataset_id"`
	Index     int                 `json:"index"`
	Tier      int                 `json:"tier"`
	Decision  string              `json:"decision"`
	Candidate gazetteer.Candidate `json:"candidate"`
	Reviewer  string              `json:"reviewer"`
	Notes     string              `json:"notes"`
	CreatedAt time.Time           `json:"created_at"`
}

// Progress summarizes how far a dataset is from being fully resolved.
type Progress struct {
	Total         int     `json:"total"`
	Resolved      int     `json:"resolved"`
	PendingReview int     `json:"pending_review"`
	Unresolved    int     `json:"unresolved"`
	Percentage    float64 `json:"percentage"`
}

// Repository handles persistence of collections and review decisions.
type Repository interface {
	// CreateSchema creates the datasets, records and reviews tables
	CreateSchema() error

	// SaveCollection stores c as a new dataset
	SaveCollection(c *gazetteer.Collection) (*Dataset, error)

	// ListDatasets returns every dataset, newest first
	ListDatasets() ([]*Dataset, error)

	// GetDataset returns one dataset
	GetDataset(id string) (*Dataset, error)

	// LoadCollection rebuilds the collection stored under id
	LoadCollection(id string) (*gazetteer.Collection, error)

	// ReviewQueue returns the records waiting for a reviewer
	ReviewQueue(id string, limit, offset int) ([]*ReviewItem, error)

	// Decide applies a reviewer decision and records it
	Decide(review *Review) (*gazetteer.Record, error)

	// ListReviews returns the decisions taken on a dataset, newest first
	ListReviews(id string) ([]*Review, error)

	// Progress counts resolved and pending records
	Progress(id string) (*Progress, error)

	// NearDuplicates groups records closer than radiusKm
	NearDuplicates(id string, radiusKm float64) ([]*Cluster, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlRepository struct {
	db *sql.DB
}

// NewRepository creates a new repository over db.
func NewRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db}
}

// DB returns the underlying database connection for advanced queries.
func (r *sqlRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlRepository) CreateSchema() error {
	// DuckDB needs to load the spatial extension
	_, err := r.db.Exec(`INSTALL spatial; LOAD spatial;`)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS reviews_seq START 1;

		CREATE TABLE IF NOT EXISTS datasets (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL,
			kind VARCHAR NOT NULL,
			columns VARCHAR NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS records (
			dataset_id VARCHAR NOT NULL,
			row_index INTEGER NOT NULL,
			name VARCHAR NOT NULL,
			identifier VARCHAR,
			has_guess BOOLEAN DEFAULT FALSE,
			point POINT_2D,
			data VARCHAR NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			h3_res1 UBIGINT,
			h3_res2 UBIGINT,
			h3_res3 UBIGINT,
			h3_res4 UBIGINT,
			h3_res5 UBIGINT,
			h3_res6 UBIGINT,
			h3_res7 UBIGINT,
			h3_res8 UBIGINT,
			PRIMARY KEY (dataset_id, row_index)
		);

		CREATE TABLE IF NOT EXISTS reviews (
			id INTEGER PRIMARY KEY DEFAULT nextval('reviews_seq'),
			dataset_id VARCHAR NOT NULL,
			row_index INTEGER NOT NULL,
			tier INTEGER NOT NULL,
			decision VARCHAR NOT NULL,
			candidate_name VARCHAR,
			candidate_identifier VARCHAR,
			candidate_distance_km DOUBLE,
			reviewer VARCHAR NOT NULL,
			notes TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)

	return err
}

// storedRecord carries the derived columns written next to a record.
type storedRecord struct {
	data     string
	ident    *string
	hasGuess bool
	lat, lng *float64
	cells    []any
}

func newStoredRecord(rec *gazetteer.Record) (*storedRecord, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding record %q: %w", rec.Name, err)
	}

	s := &storedRecord{
		data:     string(data),
		hasGuess: rec.Guess1 != nil || rec.Guess2 != nil,
		cells:    make([]any, spatial.MaxCellResolution),
	}

	if rec.Resolved() {
		s.ident = &rec.Identifier
	}

	if p := rec.Point(); p != nil && p.Validate() == nil {
		s.lat, s.lng = &p.Lat, &p.Lng

		cells, err := p.Cells()
		if err != nil {
			return nil, err
		}

		for i, c := range cells {
			s.cells[i] = c
		}
	}

	return s, nil
}

func (r *sqlRepository) SaveCollection(c *gazetteer.Collection) (*Dataset, error) {
	columns, err := json.Marshal(c.Columns)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		ID:        uuid.NewString(),
		Name:      c.Name,
		Kind:      c.Kind.String(),
		Columns:   c.Columns,
		Records:   c.Len(),
		CreatedAt: time.Now(),
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`INSERT INTO datasets(id, name, kind, columns, created_at) VALUES (?, ?, ?, ?, ?)`,
		ds.ID, ds.Name, ds.Kind, string(columns), ds.CreatedAt)
	if err != nil {
		return nil, rollback(tx, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO records(
			dataset_id,
			row_index,
			name,
			identifier,
			has_guess,
			point,
			data,
			updated_at,
			h3_res1,
			h3_res2,
			h3_res3,
			h3_res4,
			h3_res5,
			h3_res6,
			h3_res7,
			h3_res8
		)
		VALUES (?, ?, ?, ?, ?, ST_Point(?, ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, rollback(tx, err)
	}
	defer stmt.Close()

	for i, rec := range c.Records {
		s, err := newStoredRecord(rec)
		if err != nil {
			return nil, rollback(tx, err)
		}

		args := []any{ds.ID, i, rec.Name, s.ident, s.hasGuess, s.lng, s.lat, s.data, ds.CreatedAt}
		args = append(args, s.cells...)

		if _, err := stmt.Exec(args...); err != nil {
			return nil, rollback(tx, fmt.Errorf("inserting row %d: %w", gazetteer.RowNumber(i), err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("Stored %s %q as dataset %s (%d records)", ds.Kind, ds.Name, ds.ID, ds.Records)

	return ds, nil
}

func rollback(tx *sql.Tx, err error) error {
	if rErr := tx.Rollback(); rErr != nil {
		return errors.Join(err, rErr)
	}

	return err
}

const datasetSelect = `
	SELECT d.id, d.name, d.kind, d.columns, d.created_at,
	       (SELECT COUNT(*) FROM records r WHERE r.dataset_id = d.id)
	FROM datasets d
`

func scanDataset(row interface{ Scan(dest ...any) error }) (*Dataset, error) {
	var ds Dataset

	var columns string

	if err := row.Scan(&ds.ID, &ds.Name, &ds.Kind, &columns, &ds.CreatedAt, &ds.Records); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(columns), &ds.Columns); err != nil {
		return nil, fmt.Errorf("decoding columns of dataset %s: %w", ds.ID, err)
	}

	return &ds, nil
}

func (r *sqlRepository) ListDatasets() ([]*Dataset, error) {
	rows, err := r.db.Query(datasetSelect + ` ORDER BY d.created_at DESC, d.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Dataset

	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, ds)
	}

	return out, rows.Err()
}

func (r *sqlRepository) GetDataset(id string) (*Dataset, error) {
	ds, err := scanDataset(r.db.QueryRow(datasetSelect+` WHERE d.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}

	return ds, err
}

func (r *sqlRepository) listRecords(query string, args ...any) ([]int, []*gazetteer.Record, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		indexes []int
		records []*gazetteer.Record
	)

	for rows.Next() {
		var (
			index int
			data  string
		)

		if err := rows.Scan(&index, &data); err != nil {
			return nil, nil, err
		}

		rec := &gazetteer.Record{}
		if err := json.Unmarshal([]byte(data), rec); err != nil {
			return nil, nil, fmt.Errorf("decoding row %d: %w", gazetteer.RowNumber(index), err)
		}

		indexes = append(indexes, index)
		records = append(records, rec)
	}

	return indexes, records, rows.Err()
}

func (r *sqlRepository) LoadCollection(id string) (*gazetteer.Collection, error) {
	ds, err := r.GetDataset(id)
	if err != nil {
		return nil, err
	}

	kind, err := gazetteer.ParseKind(ds.Kind)
	if err != nil {
		return nil, err
	}

	_, records, err := r.listRecords(`SELECT row_index, data FROM records WHERE dataset_id = ? ORDER BY row_index`, id)
	if err != nil {
		return nil, err
	}

	c := gazetteer.New(ds.Name, kind, records)
	c.Columns = ds.Columns

	return c, nil
}

func (r *sqlRepository) ReviewQueue(id string, limit, offset int) ([]*ReviewItem, error) {
	if _, err := r.GetDataset(id); err != nil {
		return nil, err
	}

	query := `
		SELECT row_index, data FROM records
		WHERE dataset_id = ? AND identifier IS NULL AND has_guess
		ORDER BY row_index
	`
	args := []any{id}

	if limit > 0 {
		query += " LIMIT ? OFFSET ?"

		args = append(args, limit, offset)
	}

	indexes, records, err := r.listRecords(query, args...)
	if err != nil {
		return nil, err
	}

	items := make([]*ReviewItem, len(records))
	for i, rec := range records {
		items[i] = &ReviewItem{Index: indexes[i], Row: gazetteer.RowNumber(indexes[i]), Record: rec}
	}

	return items, nil
}

// Decide accepts or rejects the guess held in review.Tier. Accepting promotes
// it to the record identifier and clears both guesses; rejecting clears that
// guess only.
func (r *sqlRepository) Decide(review *Review) (*gazetteer.Record, error) {
	if err := validateReview(review); err != nil {
		return nil, err
	}

	_, records, err := r.listRecords(`SELECT row_index, data FROM records WHERE dataset_id = ? AND row_index = ?`,
		review.DatasetID, review.Index)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		if _, err := r.GetDataset(review.DatasetID); err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("%w: row %d", ErrRecordNotFound, gazetteer.RowNumber(review.Index))
	}

	rec := records[0]

	guess := &rec.Guess1
	if review.Tier == 2 {
		guess = &rec.Guess2
	}

	if *guess == nil {
		return nil, fmt.Errorf("%w: tier %d of row %d", ErrNoGuess, review.Tier, gazetteer.RowNumber(review.Index))
	}

	review.Candidate = **guess

	if review.Decision == DecisionAccept {
		rec.Accept(review.Candidate)
	} else {
		*guess = nil
	}

	s, err := newStoredRecord(rec)
	if err != nil {
		return nil, err
	}

	review.CreatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		UPDATE records
		SET identifier = ?, has_guess = ?, data = ?, updated_at = ?
		WHERE dataset_id = ? AND row_index = ?
	`, s.ident, s.hasGuess, s.data, review.CreatedAt, review.DatasetID, review.Index)
	if err != nil {
		return nil, rollback(tx, err)
	}

	err = tx.QueryRow(`
		INSERT INTO reviews(
			dataset_id,
			row_index,
			tier,
			decision,
			candidate_name,
			candidate_identifier,
			candidate_distance_km,
			reviewer,
			notes,
			created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		review.DatasetID,
		review.Index,
		review.Tier,
		review.Decision,
		review.Candidate.Name,
		review.Candidate.Identifier,
		review.Candidate.DistanceKm,
		review.Reviewer,
		review.Notes,
		review.CreatedAt,
	).Scan(&review.ID)
	if err != nil {
		return nil, rollback(tx, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return rec, nil
}

func (r *sqlRepository) ListReviews(id string) ([]*Review, error) {
	rows, err := r.db.Query(`
		SELECT id, dataset_id, row_index, tier, decision,
		       candidate_name, candidate_identifier, candidate_distance_km,
		       reviewer, notes, created_at
		FROM reviews
		WHERE dataset_id = ?
		ORDER BY id DESC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*Review

	for rows.Next() {
		var (
			rv       Review
			name, gi sql.NullString
			dist     sql.NullFloat64
		)

		err := rows.Scan(
			&rv.ID, &rv.DatasetID, &rv.Index, &rv.Tier, &rv.Decision,
			&name, &gi, &dist,
			&rv.Reviewer, &rv.Notes, &rv.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		rv.Candidate = gazetteer.Candidate{Name: name.String, Identifier: gi.String, DistanceKm: dist.Float64}
		reviews = append(reviews, &rv)
	}

	return reviews, rows.Err()
}

func (r *sqlRepository) Progress(id string) (*Progress, error) {
	if _, err := r.GetDataset(id); err != nil {
		return nil, err
	}

	var p Progress

	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(identifier),
			COUNT(*) FILTER (WHERE identifier IS NULL AND has_guess)
		FROM records
		WHERE dataset_id = ?
	`, id).Scan(&p.Total, &p.Resolved, &p.PendingReview)
	if err != nil {
		return nil, err
	}

	p.Unresolved = p.Total - p.Resolved - p.PendingReview
	if p.Total > 0 {
		p.Percentage = float64(p.Resolved) / float64(p.Total) * 100
	}

	return &p, nil
}
