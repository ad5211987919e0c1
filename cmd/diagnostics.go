// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/resolve"
)

// Last line of every diagnostics report.
const (
	gazetteerSignOff = "So many places to visit!"
	itinerarySignOff = "Have a nice day!"
)

// writeDiagnostics writes the unique lines of d followed by signOff.
func writeDiagnostics(w io.Writer, d *gazetteer.Diagnostics, signOff string) error {
	bw := bufio.NewWriter(w)

	for _, line := range d.Unique() {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(bw, signOff); err != nil {
		return err
	}

	return bw.Flush()
}

// emitDiagnostics sends d to the errors file when one is set, or to stderr.
// path overrides the --errors-file flag when not empty.
func emitDiagnostics(d *gazetteer.Diagnostics, signOff, path string) (err error) {
	if path == "" {
		path = rootOptions.ErrorsFile
	}

	if path == "" {
		return writeDiagnostics(os.Stderr, d, signOff)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if err := writeDiagnostics(f, d, signOff); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if n := len(d.Unique()); n > 0 {
		color.Yellow("%d diagnostic lines written to %s", n, path)
	}

	return nil
}

// printResolveReport summarizes a lookup pass on stdout.
func printResolveReport(name string, r *resolve.Report) {
	if !r.OK() {
		color.Red("✗ Lookup of %s %s after %d of %d records", name, r.Status, r.Queried, r.Pending)

		return
	}

	if r.Pending == 0 {
		color.Green("✓ Every record of %s already has an identifier", name)

		return
	}

	color.Green("✓ Looked up %d records of %s", r.Queried, name)
	fmt.Printf("  %s resolved, %s first guesses, %s second guesses, %s failed\n",
		color.GreenString("%d", r.Resolved),
		color.YellowString("%d", r.Guessed),
		color.YellowString("%d", r.SecondGuesses),
		color.RedString("%d", len(r.Failed)),
	)
}

// outputPath returns out, or input with suffix inserted before the extension.
func outputPath(out, input, suffix string) string {
	if out != "" {
		return out
	}

	base := strings.TrimSuffix(input, ".csv")

	return base + "_" + suffix + ".csv"
}
