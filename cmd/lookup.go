// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/jcodagnone/gazetteer/config"
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/geocode"
	"github.com/jcodagnone/gazetteer/resolve"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// lookupOptions select and tune the lookup service.
type lookupOptions struct {
	Provider        string
	RequestsPerHour int
}

func (o *lookupOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Provider, "provider", "geonames", "Lookup service: geonames or google")
	cmd.Flags().IntVar(&o.RequestsPerHour, "requests-per-hour", 0, "Client side GeoNames request budget (0 means unlimited)")
}

func httpClient() *http.Client {
	var trace io.Writer
	if rootOptions.EnableHTTPTrace {
		trace = os.Stderr
	}

	return geocode.NewHTTPClient(trace, rootOptions.EnableBodyTrace)
}

func newGeoNames(creds config.Credentials, requestsPerHour int) (*geocode.GeoNames, error) {
	if creds.GeoNamesUsername == "" {
		return nil, fmt.Errorf("%s is not set", config.EnvGeoNamesUsername)
	}

	return geocode.NewGeoNames(creds.GeoNamesUsername, httpClient()).WithRequestsPerHour(requestsPerHour), nil
}

func newLookupClient(ctx context.Context, opts lookupOptions) (geocode.Client, error) {
	creds := config.LoadCredentials()

	switch opts.Provider {
	case "", "geonames":
		return newGeoNames(creds, opts.RequestsPerHour)
	case "google":
		apiKey := creds.GoogleMapsAPIKey
		if apiKey == "" {
			log.Printf("%s is not set. Attempting to retrieve via ADC...", config.EnvGoogleMapsAPIKey)

			var err error

			apiKey, err = geocode.APIKeyFromADC(ctx, creds.GoogleCloudProject, geocode.DefaultKeyDisplayName)
			if err != nil {
				return nil, fmt.Errorf("%s is not set and ADC failed: %w", config.EnvGoogleMapsAPIKey, err)
			}

			log.Println("Retrieved Google Maps API key via ADC")
		}

		return geocode.NewGoogleMapsGeocoder(apiKey, httpClient()), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want geonames or google)", opts.Provider)
	}
}

// newResolver returns a resolver reporting progress on stderr: a bar on a
// terminal, periodic log lines otherwise. finish clears any pending bar.
func newResolver(client geocode.Client) (r *resolve.Resolver, finish func()) {
	var bar *progressbar.ProgressBar

	finish = func() {
		if bar != nil {
			_ = bar.Finish()
			bar = nil
		}
	}

	progress := func(done, total int) {
		if !isatty.IsTerminal(os.Stderr.Fd()) {
			if done == total || done%50 == 0 {
				log.Printf("Looked up %d of %d records", done, total)
			}

			return
		}

		if bar == nil || done == 1 {
			finish()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Looking up"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		_ = bar.Set(done)

		if done == total {
			finish()
		}
	}

	return resolve.New(client, resolve.WithProgress(progress)), finish
}

// resolveError keeps the pass outcome out of the cobra error when the
// diagnostics already explain it.
func resolveError(report *resolve.Report, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, resolve.ErrUnavailable) || errors.Is(err, resolve.ErrAborted) {
		return fmt.Errorf("lookup %s: %w", report.Status, err)
	}

	return err
}

// lazyResolver connects to the lookup service on first use, so commands whose
// inputs already carry identifiers run offline.
type lazyResolver struct {
	opts     lookupOptions
	resolver *resolve.Resolver
	finish   func()
}

func (l *lazyResolver) Resolve(ctx context.Context, c *gazetteer.Collection, mode resolve.Mode) (*resolve.Report, error) {
	if l.resolver == nil {
		client, err := newLookupClient(ctx, l.opts)
		if err != nil {
			return &resolve.Report{Status: resolve.StatusUnavailable}, err
		}

		l.resolver, l.finish = newResolver(client)
	}

	report, err := l.resolver.Resolve(ctx, c, mode)
	l.finish()
	printResolveReport(c.Name, report)

	return report, err
}
