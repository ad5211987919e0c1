// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jcodagnone/gazetteer/spatial"
)

// DefaultGoogleURL is the Google Maps reverse geocoding endpoint.
const DefaultGoogleURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleMapsGeocoder uses the Google Maps reverse geocoding API. Identifiers
// are Google place ids.
type GoogleMapsGeocoder struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewGoogleMapsGeocoder creates a new Google Maps geocoder. A nil httpClient
// uses one with a 10 second timeout.
func NewGoogleMapsGeocoder(apiKey string, httpClient *http.Client) *GoogleMapsGeocoder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &GoogleMapsGeocoder{
		apiKey:     apiKey,
		endpoint:   DefaultGoogleURL,
		httpClient: httpClient,
	}
}

// WithEndpoint points the geocoder at another URL.
func (g *GoogleMapsGeocoder) WithEndpoint(u string) *GoogleMapsGeocoder {
	g.endpoint = u

	return g
}

type googleMapsResponse struct {
	Results []struct {
		PlaceID           string `json:"place_id"`
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, etc.
	ErrorMessage string `json:"error_message"`
}

var googleResultTypes = map[FeatureClass]string{
	FeaturePopulatedPlace: "locality",
	FeatureSpot:           "point_of_interest|establishment",
}

// FindNearest implements Client.
func (g *GoogleMapsGeocoder) FindNearest(ctx context.Context, p spatial.Point, feature FeatureClass) Outcome {
	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", p.Lat, p.Lng))
	params.Set("key", g.apiKey)

	if t, ok := googleResultTypes[feature]; ok {
		params.Set("result_type", t)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return TransientError{Err: &LookupError{Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return outcomeForHTTPStatus(resp.StatusCode)
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return TransientError{Err: &LookupError{Type: ErrorTypeDecode, Message: "decoding response", Err: err}}
	}

	switch gmResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return NoResult{}
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return RateLimited{Window: Daily}
	case "REQUEST_DENIED":
		return InvalidCredentials{Message: gmResp.ErrorMessage}
	default:
		return TransientError{Err: &LookupError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("google maps status %s: %s", gmResp.Status, gmResp.ErrorMessage),
		}}
	}

	if len(gmResp.Results) == 0 {
		return NoResult{}
	}

	result := gmResp.Results[0]

	name := result.FormattedAddress
	if len(result.AddressComponents) > 0 {
		name = result.AddressComponents[0].LongName
	}

	location := spatial.Point{Lat: result.Geometry.Location.Lat, Lng: result.Geometry.Location.Lng}

	return Found{
		Identifier: result.PlaceID,
		Name:       name,
		DistanceKm: p.HaversineDistance(&location),
	}
}
