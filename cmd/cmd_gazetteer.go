// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/reconcile"
	"github.com/jcodagnone/gazetteer/resolve"
	"github.com/jcodagnone/gazetteer/utils/textutils"
	"github.com/spf13/cobra"
)

var gazetteerOptions = struct {
	lookupOptions

	Encoding    string
	Itinerary   bool
	Double      bool
	Out         string
	Save        string
	Merge       string
	KeepMatches bool
	Code        string
}{}

func loadCollection(path string, kind gazetteer.Kind) (*gazetteer.Collection, error) {
	return gazetteer.Load(path, gazetteer.ReadOptions{Kind: kind, Encoding: gazetteerOptions.Encoding})
}

func saveCollection(path string, c *gazetteer.Collection) error {
	if err := gazetteer.Save(path, c); err != nil {
		return err
	}

	color.Green("✓ Saved %s (%s rows) to %s", c.Name, textutils.FormatInt(int64(c.Len())), path)

	return nil
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check the columns, coordinates and dates of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		kind, signOff := gazetteer.KindGazetteer, gazetteerSignOff
		if gazetteerOptions.Itinerary {
			kind, signOff = gazetteer.KindItinerary, itinerarySignOff
		}

		c, err := loadCollection(args[0], kind)
		if err != nil {
			return err
		}

		verr := c.Validate()
		if verr == nil && kind == gazetteer.KindItinerary {
			c.FormatDates()
		}

		if err := emitDiagnostics(c.Diagnostics, signOff, ""); err != nil {
			return err
		}

		if verr != nil {
			color.Red("✗ %s has validation defects", c.Name)

			return verr
		}

		color.Green("✓ %s is valid (%d rows)", c.Name, c.Len())

		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <file>",
	Short: "Look up the identifiers of the unresolved places of a gazetteer",
	Long: `Looks up every place with a name and no geoid. Places whose nearest
populated place has a similar name get its identifier; the others get a guess
for manual review. --double adds a second, unrestricted guess.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCollection(args[0], gazetteer.KindGazetteer)
		if err != nil {
			return err
		}

		mode := resolve.Single
		if gazetteerOptions.Double {
			mode = resolve.Double
		}

		lazy := &lazyResolver{opts: gazetteerOptions.lookupOptions}
		report, rerr := lazy.Resolve(cmd.Context(), c, mode)

		if report.Status != resolve.StatusInvalid && report.Queried > 0 {
			if err := saveCollection(outputPath(gazetteerOptions.Out, args[0], "processed"), c); err != nil {
				return errors.Join(rerr, err)
			}
		}

		if err := emitDiagnostics(c.Diagnostics, gazetteerSignOff, ""); err != nil {
			return errors.Join(rerr, err)
		}

		return resolveError(report, rerr)
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <file> <reference>",
	Short: "Reconcile a gazetteer against a reference gazetteer",
	Long: `Matches the places of <file> against the places of <reference> that share
their identifier. Either file lacking identifiers is looked up first.
--merge writes the reference followed by the places of <file>; exact matches
are left out unless --keep-matches is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch gazetteerOptions.Save {
		case "none", "primary", "both":
		default:
			return fmt.Errorf("unknown --save value %q (want none, primary or both)", gazetteerOptions.Save)
		}

		primary, err := loadCollection(args[0], gazetteer.KindGazetteer)
		if err != nil {
			return err
		}

		reference, err := loadCollection(args[1], gazetteer.KindGazetteer)
		if err != nil {
			return err
		}

		engine := reconcile.New(&lazyResolver{opts: gazetteerOptions.lookupOptions})

		report, rerr := engine.Reconcile(cmd.Context(), primary, reference)
		if rerr == nil {
			err = compareOutputs(primary, reference, report, args)
		}

		primary.Diagnostics.Append(reference.Diagnostics)

		return errors.Join(rerr, err, emitDiagnostics(primary.Diagnostics, gazetteerSignOff, ""))
	},
}

func compareOutputs(primary, reference *gazetteer.Collection, report *reconcile.Report, args []string) error {
	color.Green("✓ %d exact matches, %d conflicts, %d new places", len(report.Exact), len(report.Conflicts), len(report.Novel))

	if gazetteerOptions.Save == "primary" || gazetteerOptions.Save == "both" {
		if err := saveCollection(outputPath(gazetteerOptions.Out, args[0], "processed"), primary); err != nil {
			return err
		}
	}

	if gazetteerOptions.Save == "both" {
		if err := saveCollection(outputPath("", args[1], "processed"), reference); err != nil {
			return err
		}
	}

	if gazetteerOptions.Merge != "" {
		merged := reconcile.Merge(primary, reference, report, !gazetteerOptions.KeepMatches)

		return saveCollection(gazetteerOptions.Merge, merged)
	}

	return nil
}

var labelCmd = &cobra.Command{
	Use:   "label <gazetteer> <itinerary>",
	Short: "Tag the places of a gazetteer visited by an itinerary",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		if gazetteerOptions.Code == "" {
			return errors.New("--code is required")
		}

		gaz, err := loadCollection(args[0], gazetteer.KindGazetteer)
		if err != nil {
			return err
		}

		itin, err := loadCollection(args[1], gazetteer.KindItinerary)
		if err != nil {
			return err
		}

		gaz.LabelItinerary(itin, gazetteerOptions.Code)

		err = saveCollection(outputPath(gazetteerOptions.Out, args[0], "processed"), gaz)

		return errors.Join(err, emitDiagnostics(gaz.Diagnostics, gazetteerSignOff, ""))
	},
}

func init() {
	for _, c := range []*cobra.Command{validateCmd, resolveCmd, compareCmd, labelCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringVar(&gazetteerOptions.Encoding, "encoding", "", "Encoding of the input files (e.g. latin1); defaults to UTF-8")
	}

	for _, c := range []*cobra.Command{resolveCmd, compareCmd, labelCmd} {
		c.Flags().StringVarP(&gazetteerOptions.Out, "out", "o", "", "Output file; defaults to <file>_processed.csv")
	}

	validateCmd.Flags().BoolVar(&gazetteerOptions.Itinerary, "itinerary", false, "The file is an itinerary")

	gazetteerOptions.addFlags(resolveCmd)
	resolveCmd.Flags().BoolVar(&gazetteerOptions.Double, "double", false, "Add a second, unrestricted guess to unresolved places")

	gazetteerOptions.addFlags(compareCmd)
	compareCmd.Flags().StringVar(&gazetteerOptions.Save, "save", "none", "Save the looked up files: none, primary or both")
	compareCmd.Flags().StringVar(&gazetteerOptions.Merge, "merge", "", "Write the merged gazetteer to this file")
	compareCmd.Flags().BoolVar(&gazetteerOptions.KeepMatches, "keep-matches", false, "Keep exact matches when merging")

	labelCmd.Flags().StringVar(&gazetteerOptions.Code, "code", "", "Itinerary code appended to itin_list")
}
