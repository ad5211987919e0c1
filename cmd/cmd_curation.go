// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/fatih/color"
	"github.com/jcodagnone/gazetteer/config"
	"github.com/jcodagnone/gazetteer/curation"
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/utils/textutils"
	"github.com/spf13/cobra"
)

const databaseFile = "gazetteer.duckdb"

var curationOptions = struct {
	Itinerary bool
	Out       string
	Addr      string
	RadiusKm  float64
}{}

var curationCmd = &cobra.Command{
	Use:   "curation",
	Short: "Manage the manual review workflow",
}

// openRepository opens the curation database under --db-path, creating it
// when create is set.
func openRepository(create bool) (*sql.DB, curation.Repository, error) {
	dbpath := filepath.Join(rootOptions.DbPath, databaseFile)

	if create {
		if err := os.MkdirAll(rootOptions.DbPath, 0o750); err != nil {
			return nil, nil, fmt.Errorf("creating db directory: %w", err)
		}
	} else if _, err := os.Stat(dbpath); errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("database not found at %s - run 'curation store' first", dbpath)
	}

	db, err := sql.Open("duckdb", dbpath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := curation.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating curation schema: %w", err)
	}

	return db, repo, nil
}

var curationStoreCmd = &cobra.Command{
	Use:   "store <file>",
	Short: "Store a gazetteer or itinerary for review",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		kind := gazetteer.KindGazetteer
		if curationOptions.Itinerary {
			kind = gazetteer.KindItinerary
		}

		c, err := loadCollection(args[0], kind)
		if err != nil {
			return err
		}

		db, repo, err := openRepository(true)
		if err != nil {
			return err
		}
		defer db.Close()

		ds, err := repo.SaveCollection(c)
		if err != nil {
			return fmt.Errorf("storing %s: %w", args[0], err)
		}

		color.Green("✓ Stored %s (%s records) as dataset %s", c.Name, textutils.FormatInt(int64(ds.Records)), ds.ID)

		return nil
	},
}

var curationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored datasets and their review progress",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openRepository(false)
		if err != nil {
			return err
		}
		defer db.Close()

		datasets, err := repo.ListDatasets()
		if err != nil {
			return err
		}

		a, b, c := strings.Repeat("─", 36), strings.Repeat("─", 24), strings.Repeat("─", 22)
		fmt.Printf("╭─%s─┬─%s─┬─%s─╮\n", a, b, c)
		fmt.Printf("│ %-36s │ %-24s │ %-22s │\n", "Id", "Name", "Resolved / Review")
		fmt.Printf("├─%s─┼─%s─┼─%s─┤\n", a, b, c)

		for _, ds := range datasets {
			p, err := repo.Progress(ds.ID)
			if err != nil {
				return err
			}

			progress := fmt.Sprintf("%d/%d (%d pending)", p.Resolved, p.Total, p.PendingReview)
			fmt.Printf("│ %-36s │ %-24.24s │ %-22s │\n", ds.ID, ds.Name, progress)
		}

		fmt.Printf("╰─%s─┴─%s─┴─%s─╯\n", a, b, c)

		return nil
	},
}

var curationExportCmd = &cobra.Command{
	Use:   "export <dataset>",
	Short: "Write a stored dataset, with its review decisions, to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, repo, err := openRepository(false)
		if err != nil {
			return err
		}
		defer db.Close()

		c, err := repo.LoadCollection(args[0])
		if err != nil {
			return err
		}

		out := curationOptions.Out
		if out == "" {
			out = c.Name + "_reviewed.csv"
		}

		return saveCollection(out, c)
	},
}

var curationClustersCmd = &cobra.Command{
	Use:   "clusters <dataset>",
	Short: "List groups of places closer than a radius",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, repo, err := openRepository(false)
		if err != nil {
			return err
		}
		defer db.Close()

		clusters, err := repo.NearDuplicates(args[0], curationOptions.RadiusKm)
		if err != nil {
			return err
		}

		for _, cl := range clusters {
			color.Yellow("%s (%d places)", cl.Principal, len(cl.Members))

			for _, m := range cl.Members {
				fmt.Printf("  row %-5d %-30s %8.3f km  %s\n", m.Row, m.Name, m.DistanceFromPrincipal, m.Identifier)
			}

			for _, p := range cl.Pairs {
				fmt.Printf("  rows %d-%d similarity %.2f\n", p.A, p.B, p.Score)
			}
		}

		color.Green("✓ %d clusters within %.2f km", len(clusters), curationOptions.RadiusKm)

		return nil
	},
}

var curationServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review API server (local only)",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openRepository(false)
		if err != nil {
			return err
		}
		defer db.Close()

		var features curation.FeatureSource

		if g, err := newGeoNames(config.LoadCredentials(), 0); err != nil {
			log.Printf("Feature details disabled: %v", err)
		} else {
			features = g
		}

		fmt.Printf("Review API listening on http://%s/api/datasets\n", curationOptions.Addr)

		return curation.NewServer(repo, features).Run(curationOptions.Addr)
	},
}

func init() {
	rootCmd.AddCommand(curationCmd)
	curationCmd.AddCommand(curationStoreCmd)
	curationCmd.AddCommand(curationListCmd)
	curationCmd.AddCommand(curationExportCmd)
	curationCmd.AddCommand(curationClustersCmd)
	curationCmd.AddCommand(curationServeCmd)

	curationStoreCmd.Flags().BoolVar(&curationOptions.Itinerary, "itinerary", false, "The file is an itinerary")
	curationStoreCmd.Flags().StringVar(&gazetteerOptions.Encoding, "encoding", "", "Encoding of the input file (e.g. latin1); defaults to UTF-8")
	curationExportCmd.Flags().StringVarP(&curationOptions.Out, "out", "o", "", "Output file; defaults to <name>_reviewed.csv")
	curationClustersCmd.Flags().Float64Var(&curationOptions.RadiusKm, "radius-km", curation.DefaultClusterRadiusKm, "Clustering radius in kilometers")
	curationServeCmd.Flags().StringVar(&curationOptions.Addr, "addr", "localhost:8080", "Listen address")
}
