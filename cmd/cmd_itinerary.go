// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"strings"

	"github.com/fatih/color"
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/reconcile"
	"github.com/jcodagnone/gazetteer/trips"
	"github.com/spf13/cobra"
)

var itineraryOptions = struct {
	DateMode   string
	Out        string
	Attributes []string
}{}

var itineraryCmd = &cobra.Command{
	Use:   "itinerary",
	Short: "Work with dated itineraries",
}

var tripsCmd = &cobra.Command{
	Use:   "trips <file>",
	Short: "Turn an itinerary into point to point trips",
	Long: `Sorts the dated stays of an itinerary, collapses consecutive stays at the
same place and writes one row per move with the elapsed days and the
great-circle distance.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		mode, err := trips.ParseDateMode(itineraryOptions.DateMode)
		if err != nil {
			return err
		}

		itin, err := loadCollection(args[0], gazetteer.KindItinerary)
		if err != nil {
			return err
		}

		result, serr := trips.Segment(itin, mode)
		if serr == nil {
			out := outputPath(itineraryOptions.Out, args[0], "trips")
			if serr = trips.Save(out, result.Trips, mode); serr == nil {
				color.Green("✓ Wrote %d trips to %s", len(result.Trips), out)
			}

			if len(result.Excluded) > 0 {
				color.Yellow("%d rows left out of the trips", len(result.Excluded))
			}
		}

		return errors.Join(serr, emitDiagnostics(itin.Diagnostics, itinerarySignOff, ""))
	},
}

var datesCmd = &cobra.Command{
	Use:   "dates <file>",
	Short: "Form the dates column of an itinerary from its day, month and year",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		itin, err := loadCollection(args[0], gazetteer.KindItinerary)
		if err != nil {
			return err
		}

		if err := itin.Validate(); err != nil {
			return errors.Join(err, emitDiagnostics(itin.Diagnostics, itinerarySignOff, ""))
		}

		report := itin.FormatDates()
		if len(report.Incomplete)+len(report.Invalid) > 0 {
			color.Yellow("%d incomplete and %d invalid dates", len(report.Incomplete), len(report.Invalid))
		}

		err = saveCollection(outputPath(itineraryOptions.Out, args[0], "processed"), itin)

		return errors.Join(err, emitDiagnostics(itin.Diagnostics, itinerarySignOff, ""))
	},
}

var toGazetteerCmd = &cobra.Command{
	Use:   "to-gazetteer <file>",
	Short: "Build a gazetteer with the distinct places of an itinerary",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		itin, err := loadCollection(args[0], gazetteer.KindItinerary)
		if err != nil {
			return err
		}

		gaz := gazetteer.FromItinerary(itin)
		err = saveCollection(outputPath(itineraryOptions.Out, args[0], "gazetteer"), gaz)

		return errors.Join(err, emitDiagnostics(gaz.Diagnostics, itinerarySignOff, ""))
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <itinerary> <gazetteer>",
	Short: "Match itinerary names against a gazetteer and copy its attributes",
	Long: `Writes in gaz_match the gazetteer name closest to each itinerary name
("exact match" when identical). --attributes copies the listed gazetteer
columns onto the itinerary records sharing the name.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		itin, err := loadCollection(args[0], gazetteer.KindItinerary)
		if err != nil {
			return err
		}

		gaz, err := loadCollection(args[1], gazetteer.KindGazetteer)
		if err != nil {
			return err
		}

		reconcile.FuzzyNameMatch(itin, gaz)

		if len(itineraryOptions.Attributes) > 0 {
			attrs := make([]string, 0, len(itineraryOptions.Attributes))
			for _, a := range itineraryOptions.Attributes {
				attrs = append(attrs, strings.TrimSpace(a))
			}

			itin.LookupAttributes(gaz, attrs)
		}

		err = saveCollection(outputPath(itineraryOptions.Out, args[0], "processed"), itin)

		return errors.Join(err, emitDiagnostics(itin.Diagnostics, itinerarySignOff, ""))
	},
}

func init() {
	rootCmd.AddCommand(itineraryCmd)

	for _, c := range []*cobra.Command{tripsCmd, datesCmd, toGazetteerCmd, matchCmd} {
		itineraryCmd.AddCommand(c)
		c.Flags().StringVarP(&itineraryOptions.Out, "out", "o", "", "Output file")
		c.Flags().StringVar(&gazetteerOptions.Encoding, "encoding", "", "Encoding of the input files (e.g. latin1); defaults to UTF-8")
	}

	tripsCmd.Flags().StringVar(&itineraryOptions.DateMode, "date-mode", "exact", "Date granularity: exact, month or month_with_exact")
	matchCmd.Flags().StringSliceVar(&itineraryOptions.Attributes, "attributes", nil, "Gazetteer columns to copy, e.g. latitude,longitude,geoid")
}
