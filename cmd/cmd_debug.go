// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jcodagnone/gazetteer/similarity"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugSimilarityCmd = &cobra.Command{
	Use:   "similarity",
	Short: "Score name pairs read from stdin",
	Long: `Reads two tab separated names per line and prints the pair followed by
its similarity score, whether it passes the acceptance threshold and the
edit distance of the folded names.

$ printf 'Paris\tPariz\n' | gazetteer debug similarity
Paris	Pariz	0.800	true	1
	`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if isatty.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "Enter name pairs separated by a tab, one per line…")
		}

		return scorePairs(os.Stdin, os.Stdout)
	},
}

func scorePairs(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		a, b, ok := strings.Cut(scanner.Text(), "\t")
		if !ok {
			fmt.Fprintf(w, "%s\t%q\n", scanner.Text(), "expected two tab separated names")

			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%.3f\t%t\t%d\n", a, b, similarity.Score(a, b), similarity.Similar(a, b), similarity.Distance(a, b))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugSimilarityCmd)
}
