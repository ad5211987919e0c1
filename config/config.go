// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads credentials from the environment and job files
// describing a full processing run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/jcodagnone/gazetteer/resolve"
	"github.com/jcodagnone/gazetteer/trips"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variables holding credentials.
const (
	EnvGeoNamesUsername = "GEONAMES_USERNAME"
	EnvGoogleMapsAPIKey = "GOOGLE_MAPS_API_KEY"
	EnvGoogleProject    = "GOOGLE_CLOUD_PROJECT"
)

// Credentials for the lookup services.
type Credentials struct {
	GeoNamesUsername   string
	GoogleMapsAPIKey   string
	GoogleCloudProject string
}

// LoadCredentials reads credentials from the environment after loading
// .env and .env.local from the working directory. Variables already set in
// the environment win over the files.
func LoadCredentials() Credentials {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	v.AutomaticEnv()

	return Credentials{
		GeoNamesUsername:   v.GetString(EnvGeoNamesUsername),
		GoogleMapsAPIKey:   v.GetString(EnvGoogleMapsAPIKey),
		GoogleCloudProject: v.GetString(EnvGoogleProject),
	}
}

// Job describes a processing run: a gazetteer pipeline, an itinerary
// pipeline, or both.
type Job struct {
	// Provider is geonames or google.
	Provider string `mapstructure:"provider" yaml:"provider"`
	// Encoding of the input files; empty means UTF-8.
	Encoding        string        `mapstructure:"encoding" yaml:"encoding,omitempty"`
	RequestsPerHour int           `mapstructure:"requests_per_hour" yaml:"requests_per_hour,omitempty"`
	ErrorsFile      string        `mapstructure:"errors_file" yaml:"errors_file,omitempty"`
	Gazetteer       *GazetteerJob `mapstructure:"gazetteer" yaml:"gazetteer,omitempty"`
	Itinerary       *ItineraryJob `mapstructure:"itinerary" yaml:"itinerary,omitempty"`
}

// GazetteerJob processes one gazetteer.
type GazetteerJob struct {
	File string `mapstructure:"file" yaml:"file"`
	// Lookup is empty, single or double.
	Lookup  string      `mapstructure:"lookup" yaml:"lookup,omitempty"`
	Compare *CompareJob `mapstructure:"compare" yaml:"compare,omitempty"`
	Label   *LabelJob   `mapstructure:"label" yaml:"label,omitempty"`
	Out     string      `mapstructure:"out" yaml:"out,omitempty"`
}

// CompareJob reconciles the gazetteer against a reference.
type CompareJob struct {
	Reference string `mapstructure:"reference" yaml:"reference"`
	// Save is none, primary or both.
	Save        string `mapstructure:"save" yaml:"save,omitempty"`
	Merge       string `mapstructure:"merge" yaml:"merge,omitempty"`
	KeepMatches bool   `mapstructure:"keep_matches" yaml:"keep_matches,omitempty"`
}

// LabelJob tags gazetteer places visited by an itinerary.
type LabelJob struct {
	Itinerary string `mapstructure:"itinerary" yaml:"itinerary"`
	Code      string `mapstructure:"code" yaml:"code"`
}

// ItineraryJob processes one itinerary.
type ItineraryJob struct {
	File        string         `mapstructure:"file" yaml:"file"`
	FuzzyMatch  string         `mapstructure:"fuzzy_match" yaml:"fuzzy_match,omitempty"`
	Attributes  *AttributesJob `mapstructure:"attributes" yaml:"attributes,omitempty"`
	FormatDates bool           `mapstructure:"format_dates" yaml:"format_dates,omitempty"`
	ToGazetteer string         `mapstructure:"to_gazetteer" yaml:"to_gazetteer,omitempty"`
	Trips       *TripsJob      `mapstructure:"trips" yaml:"trips,omitempty"`
	Out         string         `mapstructure:"out" yaml:"out,omitempty"`
}

// AttributesJob copies columns from a gazetteer.
type AttributesJob struct {
	Gazetteer string   `mapstructure:"gazetteer" yaml:"gazetteer"`
	Columns   []string `mapstructure:"columns" yaml:"columns"`
}

// TripsJob segments the itinerary into trips.
type TripsJob struct {
	DateMode string `mapstructure:"date_mode" yaml:"date_mode,omitempty"`
	Out      string `mapstructure:"out" yaml:"out"`
}

// LoadJob reads a job file. YAML, JSON and TOML are accepted, chosen by
// extension. Unknown keys are an error.
func LoadJob(path string) (*Job, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("provider", "geonames")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", path, err)
	}

	var job Job
	if err := v.UnmarshalExact(&job); err != nil {
		return nil, fmt.Errorf("invalid job %s: %w", path, err)
	}

	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job %s: %w", path, err)
	}

	return &job, nil
}

// Validate checks the enumerated options and the required files.
func (j *Job) Validate() error {
	var errs []error

	switch j.Provider {
	case "geonames", "google":
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q (want geonames or google)", j.Provider))
	}

	if j.Gazetteer == nil && j.Itinerary == nil {
		errs = append(errs, errors.New("the job has neither a gazetteer nor an itinerary"))
	}

	if g := j.Gazetteer; g != nil {
		if g.File == "" {
			errs = append(errs, errors.New("gazetteer.file is required"))
		}

		if _, err := resolve.ParseMode(g.Lookup); err != nil {
			errs = append(errs, fmt.Errorf("gazetteer.lookup: %w", err))
		}

		if c := g.Compare; c != nil {
			if c.Reference == "" {
				errs = append(errs, errors.New("gazetteer.compare.reference is required"))
			}

			switch c.Save {
			case "", "none", "primary", "both":
			default:
				errs = append(errs, fmt.Errorf("gazetteer.compare.save: unknown value %q (want none, primary or both)", c.Save))
			}
		}

		if l := g.Label; l != nil && (l.Itinerary == "" || l.Code == "") {
			errs = append(errs, errors.New("gazetteer.label needs an itinerary and a code"))
		}
	}

	if it := j.Itinerary; it != nil {
		if it.File == "" {
			errs = append(errs, errors.New("itinerary.file is required"))
		}

		if a := it.Attributes; a != nil && (a.Gazetteer == "" || len(a.Columns) == 0) {
			errs = append(errs, errors.New("itinerary.attributes needs a gazetteer and columns"))
		}

		if t := it.Trips; t != nil {
			if _, err := trips.ParseDateMode(t.DateMode); err != nil {
				errs = append(errs, fmt.Errorf("itinerary.trips.date_mode: %w", err))
			}

			if t.Out == "" {
				errs = append(errs, errors.New("itinerary.trips.out is required"))
			}
		}
	}

	return errors.Join(errs...)
}

const templateHeader = `# Gazetteer job file.
#
# provider: geonames (needs GEONAMES_USERNAME) or google (GOOGLE_MAPS_API_KEY).
# gazetteer.lookup: single or double. compare.save: none, primary or both.
# itinerary.trips.date_mode: exact, month or month_with_exact.
`

// Template returns a commented example job.
func Template() ([]byte, error) {
	example := Job{
		Provider:   "geonames",
		ErrorsFile: "errors.txt",
		Gazetteer: &GazetteerJob{
			File:   "gazetteer.csv",
			Lookup: "single",
			Compare: &CompareJob{
				Reference: "reference.csv",
				Save:      "primary",
				Merge:     "merged.csv",
			},
			Label: &LabelJob{Itinerary: "itinerary.csv", Code: "IT1"},
			Out:   "gazetteer_processed.csv",
		},
		Itinerary: &ItineraryJob{
			File:       "itinerary.csv",
			FuzzyMatch: "gazetteer.csv",
			Attributes: &AttributesJob{
				Gazetteer: "gazetteer.csv",
				Columns:   []string{"latitude", "longitude", "geoid"},
			},
			FormatDates: true,
			ToGazetteer: "itinerary_gazetteer.csv",
			Trips:       &TripsJob{DateMode: "exact", Out: "trips.csv"},
			Out:         "itinerary_processed.csv",
		},
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return append([]byte(templateHeader), data...), nil
}

// WriteTemplate writes Template to path, refusing to overwrite a file.
func WriteTemplate(path string) error {
	data, err := Template()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return f.Close()
}

// ErrorsFileFor returns the default diagnostics file of an input file.
func ErrorsFileFor(input string) string {
	base := strings.TrimSuffix(input, ".csv")

	return base + "_errors.txt"
}
