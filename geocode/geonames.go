// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jcodagnone/gazetteer/spatial"
	"golang.org/x/time/rate"
)

// DefaultGeoNamesURL is the public GeoNames web service.
const DefaultGeoNamesURL = "http://api.geonames.org/"

// GeoNames status codes with a dedicated outcome. Any other code is transient.
const (
	statusInvalidCredentials = 10
	statusDailyLimit         = 18
	statusHourlyLimit        = 19
	statusWeeklyLimit        = 20
)

// GeoNames queries the findNearbyJSON endpoint.
type GeoNames struct {
	username   string
	baseURL    string
	style      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGeoNames creates a client for the given account. A nil httpClient uses
// one with a 10 second timeout.
func NewGeoNames(username string, httpClient *http.Client) *GeoNames {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &GeoNames{
		username:   username,
		baseURL:    DefaultGeoNamesURL,
		style:      "SHORT",
		httpClient: httpClient,
	}
}

// WithBaseURL points the client at another deployment.
func (g *GeoNames) WithBaseURL(u string) *GeoNames {
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}

	g.baseURL = u

	return g
}

// WithStyle sets the verbosity of the response (SHORT, MEDIUM, LONG, FULL).
func (g *GeoNames) WithStyle(style string) *GeoNames {
	g.style = style

	return g
}

// WithRequestsPerHour spaces requests so that no more than n are issued per
// hour. Zero disables the budget.
func (g *GeoNames) WithRequestsPerHour(n int) *GeoNames {
	if n <= 0 {
		g.limiter = nil

		return g
	}

	g.limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(n)), 1)

	return g
}

type geonamesStatus struct {
	Message string          `json:"message"`
	Value   json.RawMessage `json:"value"`
}

type geonamesFeature struct {
	GeonameID   json.Number     `json:"geonameId"`
	Name        string          `json:"name"`
	ToponymName string          `json:"toponymName"`
	Distance    json.RawMessage `json:"distance"`
	Lat         json.RawMessage `json:"lat"`
	Lng         json.RawMessage `json:"lng"`
	FCL         string          `json:"fcl"`
	FCode       string          `json:"fcode"`
	CountryCode string          `json:"countryCode"`
	AdminName1  string          `json:"adminName1"`
}

type geonamesResponse struct {
	Geonames []geonamesFeature `json:"geonames"`
	Status   *geonamesStatus   `json:"status"`
}

// FindNearest implements Client.
func (g *GeoNames) FindNearest(ctx context.Context, p spatial.Point, feature FeatureClass) Outcome {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(p.Lng, 'f', -1, 64))

	if feature != FeatureAny {
		params.Set("featureClass", string(feature))
	}

	if g.style != "" {
		params.Set("style", g.style)
	}

	params.Set("username", g.username)

	var resp geonamesResponse
	if outcome := g.get(ctx, "findNearbyJSON", params, &resp); outcome != nil {
		return outcome
	}

	if resp.Status != nil {
		return statusOutcome(resp.Status)
	}

	if resp.Geonames == nil {
		return TransientError{Err: &LookupError{Type: ErrorTypeDecode, Message: "response has neither features nor status"}}
	}

	if len(resp.Geonames) == 0 {
		return NoResult{}
	}

	first := resp.Geonames[0]
	if first.GeonameID == "" {
		return TransientError{Err: &LookupError{Type: ErrorTypeDecode, Message: "feature without geonameId"}}
	}

	distance, err := flexibleFloat(first.Distance)
	if err != nil {
		return TransientError{Err: &LookupError{Type: ErrorTypeDecode, Message: "invalid distance", Err: err}}
	}

	return Found{
		Identifier: first.GeonameID.String(),
		Name:       first.Name,
		DistanceKm: distance,
	}
}

// Feature holds the details of a GeoNames feature.
type Feature struct {
	Identifier  string        `json:"identifier"`
	Name        string        `json:"name"`
	ToponymName string        `json:"toponym_name"`
	Point       spatial.Point `json:"point"`
	Class       string        `json:"class"`
	Code        string        `json:"code"`
	CountryCode string        `json:"country_code"`
	Admin1      string        `json:"admin1"`
}

// Feature fetches one feature by identifier. Shown to reviewers deciding on
// a guess.
func (g *GeoNames) Feature(ctx context.Context, identifier string) (*Feature, error) {
	params := url.Values{}
	params.Set("geonameId", identifier)
	params.Set("style", "FULL")
	params.Set("username", g.username)

	var raw struct {
		geonamesFeature
		Status *geonamesStatus `json:"status"`
	}

	if outcome := g.get(ctx, "getJSON", params, &raw); outcome != nil {
		return nil, outcomeError(outcome)
	}

	if raw.Status != nil {
		return nil, outcomeError(statusOutcome(raw.Status))
	}

	lat, err := flexibleFloat(raw.Lat)
	if err != nil {
		return nil, &LookupError{Type: ErrorTypeDecode, Message: "invalid latitude", Err: err}
	}

	lng, err := flexibleFloat(raw.Lng)
	if err != nil {
		return nil, &LookupError{Type: ErrorTypeDecode, Message: "invalid longitude", Err: err}
	}

	return &Feature{
		Identifier:  raw.GeonameID.String(),
		Name:        raw.Name,
		ToponymName: raw.ToponymName,
		Point:       spatial.Point{Lat: lat, Lng: lng},
		Class:       raw.FCL,
		Code:        raw.FCode,
		CountryCode: raw.CountryCode,
		Admin1:      raw.AdminName1,
	}, nil
}

// get performs the request and decodes the body into v. It returns a non nil
// outcome when the request did not produce a decodable body.
func (g *GeoNames) get(ctx context.Context, endpoint string, params url.Values, v any) Outcome {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return TransientError{Err: fmt.Errorf("waiting for request budget: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return TransientError{Err: &LookupError{Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)

		return outcomeForHTTPStatus(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return TransientError{Err: &LookupError{Type: ErrorTypeDecode, Message: "decoding response", Err: err}}
	}

	return nil
}

func statusOutcome(s *geonamesStatus) Outcome {
	code, err := flexibleFloat(s.Value)
	if err != nil {
		return TransientError{Err: &LookupError{Type: ErrorTypeDecode, Message: "invalid status value", Err: err}}
	}

	switch int(code) {
	case statusDailyLimit:
		return RateLimited{Window: Daily}
	case statusHourlyLimit:
		return RateLimited{Window: Hourly}
	case statusWeeklyLimit:
		return RateLimited{Window: Weekly}
	case statusInvalidCredentials:
		return InvalidCredentials{Message: s.Message}
	default:
		return TransientError{Err: &LookupError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("geonames status %d: %s", int(code), s.Message),
		}}
	}
}

// outcomeError converts a failed outcome into an error.
func outcomeError(o Outcome) error {
	switch o := o.(type) {
	case TransientError:
		return o.Err
	case RateLimited:
		return &LookupError{Type: ErrorTypeRateLimit, Message: o.String()}
	case InvalidCredentials:
		return &LookupError{Type: ErrorTypeQuotaExceeded, Message: "invalid credentials: " + o.Message}
	default:
		return errors.New(Describe(o))
	}
}

// flexibleFloat decodes a number that GeoNames sends either as a JSON number
// or as a string.
func flexibleFloat(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing value")
	}

	s := strings.Trim(string(raw), `"`)

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", raw, err)
	}

	return f, nil
}
