// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

// globalOptions are the flags shared by every command.
type globalOptions struct {
	DbPath          string
	ErrorsFile      string
	EnableHTTPTrace bool
	EnableBodyTrace bool
}

var rootOptions = &globalOptions{}

var rootCmd = &cobra.Command{
	Use:   "gazetteer",
	Short: "resolve, reconcile and travel through historical place lists",
	Long: `
gazetteer resolves the places of a gazetteer to GeoNames identifiers,
reconciles gazetteers against each other, and turns dated itineraries into
point to point trips.
`,
	SilenceUsage: true,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&rootOptions.DbPath,
		"db-path",
		"db",
		"Base directory for the curation database",
	)
	rootCmd.PersistentFlags().StringVar(
		&rootOptions.ErrorsFile,
		"errors-file",
		"",
		"Write diagnostics to this file instead of stderr",
	)
	rootCmd.PersistentFlags().BoolVar(
		&rootOptions.EnableHTTPTrace,
		"trace-http",
		false,
		"Display HTTP requests-responses",
	)
	rootCmd.PersistentFlags().BoolVar(
		&rootOptions.EnableBodyTrace,
		"trace-http-body",
		false,
		"Display HTTP requests-responses bodies",
	)
}
