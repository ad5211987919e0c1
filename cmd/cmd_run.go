// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/fatih/color"
	"github.com/jcodagnone/gazetteer/config"
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/reconcile"
	"github.com/jcodagnone/gazetteer/resolve"
	"github.com/jcodagnone/gazetteer/trips"
	"github.com/spf13/cobra"
)

var runOptions = struct {
	Init bool
}{}

var runCmd = &cobra.Command{
	Use:   "run <job.yaml>",
	Short: "Run every step described by a job file",
	Long: `Runs the gazetteer pipeline (compare, lookup, label, save) and the
itinerary pipeline (match, attributes, dates, gazetteer, trips, save) described
by a job file. --init writes an example job instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runOptions.Init {
			if err := config.WriteTemplate(args[0]); err != nil {
				return err
			}

			color.Green("✓ Wrote job template to %s", args[0])

			return nil
		}

		job, err := config.LoadJob(args[0])
		if err != nil {
			return err
		}

		return runJob(cmd.Context(), job)
	},
}

func runJob(ctx context.Context, job *config.Job) error {
	gazetteerOptions.Encoding = job.Encoding
	lazy := &lazyResolver{opts: lookupOptions{Provider: job.Provider, RequestsPerHour: job.RequestsPerHour}}

	var errs []error

	if g := job.Gazetteer; g != nil {
		d := &gazetteer.Diagnostics{}
		err := runGazetteerJob(ctx, g, lazy, d)
		errs = append(errs, err, emitDiagnostics(d, gazetteerSignOff, errorsPath(job, g.File, true)))
	}

	if it := job.Itinerary; it != nil {
		d := &gazetteer.Diagnostics{}
		err := runItineraryJob(it, d)
		errs = append(errs, err, emitDiagnostics(d, itinerarySignOff, errorsPath(job, it.File, job.Gazetteer == nil)))
	}

	return errors.Join(errs...)
}

// errorsPath is the job errors file for the first pipeline and a file named
// after the input otherwise.
func errorsPath(job *config.Job, input string, first bool) string {
	if first && job.ErrorsFile != "" {
		return job.ErrorsFile
	}

	return config.ErrorsFileFor(input)
}

func runGazetteerJob(ctx context.Context, g *config.GazetteerJob, lazy *lazyResolver, d *gazetteer.Diagnostics) error {
	gaz, err := loadCollection(g.File, gazetteer.KindGazetteer)
	if err != nil {
		return err
	}

	defer d.Append(gaz.Diagnostics)

	log.Printf("Processing gazetteer %s (%d rows)", gaz.Name, gaz.Len())

	if err := gaz.Validate(); err != nil {
		return err
	}

	if c := g.Compare; c != nil {
		reference, err := loadCollection(c.Reference, gazetteer.KindGazetteer)
		if err != nil {
			return err
		}

		report, err := reconcile.New(lazy).Reconcile(ctx, gaz, reference)
		d.Append(reference.Diagnostics)

		if err != nil {
			return err
		}

		if c.Save == "both" {
			if err := saveCollection(outputPath("", c.Reference, "processed"), reference); err != nil {
				return err
			}
		}

		if c.Merge != "" {
			if err := saveCollection(c.Merge, reconcile.Merge(gaz, reference, report, !c.KeepMatches)); err != nil {
				return err
			}
		}
	}

	if g.Lookup != "" {
		mode, err := resolve.ParseMode(g.Lookup)
		if err != nil {
			return err
		}

		if report, err := lazy.Resolve(ctx, gaz, mode); err != nil {
			return resolveError(report, err)
		}
	}

	if l := g.Label; l != nil {
		itin, err := loadCollection(l.Itinerary, gazetteer.KindItinerary)
		if err != nil {
			return err
		}

		gaz.LabelItinerary(itin, l.Code)
	}

	if g.Compare != nil && g.Compare.Save == "none" && g.Lookup == "" && g.Label == nil {
		return nil
	}

	return saveCollection(outputPath(g.Out, g.File, "processed"), gaz)
}

func runItineraryJob(it *config.ItineraryJob, d *gazetteer.Diagnostics) error {
	itin, err := loadCollection(it.File, gazetteer.KindItinerary)
	if err != nil {
		return err
	}

	defer d.Append(itin.Diagnostics)

	log.Printf("Processing itinerary %s (%d rows)", itin.Name, itin.Len())

	if err := itin.Validate(); err != nil {
		return err
	}

	if it.FuzzyMatch != "" {
		gaz, err := loadCollection(it.FuzzyMatch, gazetteer.KindGazetteer)
		if err != nil {
			return err
		}

		reconcile.FuzzyNameMatch(itin, gaz)
	}

	if a := it.Attributes; a != nil {
		gaz, err := loadCollection(a.Gazetteer, gazetteer.KindGazetteer)
		if err != nil {
			return err
		}

		itin.LookupAttributes(gaz, a.Columns)
	}

	if it.FormatDates {
		itin.FormatDates()
	}

	if it.ToGazetteer != "" {
		gaz := gazetteer.FromItinerary(itin)
		d.Append(gaz.Diagnostics)

		if err := saveCollection(it.ToGazetteer, gaz); err != nil {
			return err
		}
	}

	if t := it.Trips; t != nil {
		mode, err := trips.ParseDateMode(t.DateMode)
		if err != nil {
			return err
		}

		result, err := trips.Segment(itin, mode)
		if err != nil {
			return fmt.Errorf("segmenting %s: %w", itin.Name, err)
		}

		if err := trips.Save(t.Out, result.Trips, mode); err != nil {
			return err
		}

		color.Green("✓ Wrote %d trips to %s", len(result.Trips), t.Out)
	}

	return saveCollection(outputPath(it.Out, it.File, "processed"), itin)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runOptions.Init, "init", false, "Write an example job file and exit")
}
