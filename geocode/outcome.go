// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode looks up the named feature nearest to a coordinate.
//
// A Client issues exactly one request per FindNearest call and never retries;
// the outcome of the call is one of the Outcome variants below. Retry and
// abort policies belong to the caller.
package geocode

import (
	"context"
	"fmt"

	"github.com/jcodagnone/gazetteer/spatial"
)

// FeatureClass restricts a lookup to a category of places.
type FeatureClass string

const (
	// FeatureAny performs an unrestricted lookup.
	FeatureAny FeatureClass = ""
	// FeaturePopulatedPlace restricts the lookup to cities, towns and villages.
	FeaturePopulatedPlace FeatureClass = "P"
	// FeatureSpot restricts the lookup to spots, buildings and farms.
	FeatureSpot FeatureClass = "S"
)

func (f FeatureClass) String() string {
	if f == FeatureAny {
		return "any"
	}

	return string(f)
}

// Client looks up the feature nearest to a point.
type Client interface {
	FindNearest(ctx context.Context, p spatial.Point, feature FeatureClass) Outcome
}

// Outcome is the result of one lookup. It is one of Found, RateLimited,
// InvalidCredentials, NoResult or TransientError.
type Outcome interface {
	isOutcome()
}

// Found carries the nearest feature.
type Found struct {
	Identifier string
	Name       string
	DistanceKm float64
}

// Window is the quota period exhausted by a RateLimited outcome.
type Window int

const (
	// Daily quota.
	Daily Window = iota
	// Hourly quota.
	Hourly
	// Weekly quota.
	Weekly
)

func (w Window) String() string {
	switch w {
	case Hourly:
		return "hourly"
	case Weekly:
		return "weekly"
	default:
		return "daily"
	}
}

// RateLimited means the service quota for Window is exhausted.
type RateLimited struct {
	Window Window
}

// InvalidCredentials means the service rejected the account.
type InvalidCredentials struct {
	Message string
}

// NoResult means the service answered with an empty feature list.
type NoResult struct{}

// TransientError covers connection failures, unexpected statuses and
// unparseable responses.
type TransientError struct {
	Err error
}

func (Found) isOutcome()              {}
func (RateLimited) isOutcome()        {}
func (InvalidCredentials) isOutcome() {}
func (NoResult) isOutcome()           {}
func (TransientError) isOutcome()     {}

func (f Found) String() string {
	return fmt.Sprintf("%s (%s) at %.2f km", f.Name, f.Identifier, f.DistanceKm)
}

func (r RateLimited) String() string {
	return fmt.Sprintf("%s rate limit exceeded", r.Window)
}

// Describe renders an outcome for logs.
func Describe(o Outcome) string {
	switch o := o.(type) {
	case Found:
		return o.String()
	case RateLimited:
		return o.String()
	case InvalidCredentials:
		return "invalid credentials: " + o.Message
	case NoResult:
		return "no result"
	case TransientError:
		return fmt.Sprintf("transient error: %v", o.Err)
	default:
		return fmt.Sprintf("unknown outcome %T", o)
	}
}
