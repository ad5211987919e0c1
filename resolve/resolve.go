// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolve assigns geocode identifiers to the unresolved records of a
// collection.
//
// Each pass starts with a canary lookup at a fixed coordinate. Records are
// then queried one at a time, restricted to populated places first and
// unrestricted when nothing is found close enough. A result whose name is
// similar to the record name becomes the identifier; any other result is kept
// as a guess for manual review. Rate limits end the session: the resolver
// refuses further passes once a quota has been exhausted.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/geocode"
	"github.com/jcodagnone/gazetteer/similarity"
	"github.com/jcodagnone/gazetteer/spatial"
)

var (
	// ErrUnavailable is returned once the service reported an exhausted quota.
	ErrUnavailable = errors.New("lookup service unavailable")
	// ErrAborted is returned when a pass stops on a systemic failure.
	ErrAborted = errors.New("lookup pass aborted")
)

// MaxDistanceKm is the distance below which a result is considered to be the
// place at the record coordinates.
const MaxDistanceKm = 5.0

// CanaryPoint is queried before every pass. The North Pole always has a
// nearest feature and never changes.
var CanaryPoint = spatial.Point{Lat: 90, Lng: 0}

// Mode selects the number of lookup passes.
type Mode int

const (
	// Single runs the populated place pass only.
	Single Mode = iota
	// Double adds an unrestricted pass for the records left unresolved,
	// filling the second guess.
	Double
)

// ParseMode parses "single" or "double".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "single":
		return Single, nil
	case "double":
		return Double, nil
	default:
		return Single, fmt.Errorf("unknown lookup mode %q (want single or double)", s)
	}
}

func (m Mode) String() string {
	if m == Double {
		return "double"
	}

	return "single"
}

// Status summarizes a pass.
type Status int

const (
	// StatusSucceeded means every pending record was looked up. Some may
	// still have failed individually.
	StatusSucceeded Status = iota
	// StatusInvalid means the collection failed validation.
	StatusInvalid
	// StatusUnavailable means the canary failed or a quota is exhausted.
	StatusUnavailable
	// StatusAborted means the pass stopped on a systemic failure.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusInvalid:
		return "invalid"
	case StatusUnavailable:
		return "unavailable"
	case StatusAborted:
		return "aborted"
	default:
		return "succeeded"
	}
}

// Report describes one call to Resolve.
type Report struct {
	Status   Status
	Pending  int // records without an identifier when the pass started
	Queried  int // records whose lookups completed
	Resolved int // identifiers written
	Guessed  int // first guesses written
	// SecondGuesses counts guesses written by the unrestricted pass.
	SecondGuesses int
	// Failed holds the row numbers of records with no usable result.
	Failed   []int
	Messages []string
}

// OK reports whether the pass ran to completion.
func (r *Report) OK() bool {
	return r.Status == StatusSucceeded
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithProgress calls fn after each record of a pass.
func WithProgress(fn func(done, total int)) Option {
	return func(r *Resolver) {
		r.progress = fn
	}
}

// Resolver runs lookup passes against one client. It is not safe for
// concurrent use, and a collection must not be resolved by two passes at once.
type Resolver struct {
	client      geocode.Client
	progress    func(done, total int)
	unavailable error
}

// New creates a resolver.
func New(client geocode.Client, opts ...Option) *Resolver {
	r := &Resolver{client: client}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Available reports whether the resolver still accepts passes.
func (r *Resolver) Available() bool {
	return r.unavailable == nil
}

// pass carries the state of one call to Resolve.
type pass struct {
	*Resolver

	collection *gazetteer.Collection
	report     *Report
}

func (p *pass) message(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.report.Messages = append(p.report.Messages, msg)
	p.collection.Diagnostics.Add(msg)
}

// Resolve looks up every record of c that has a name and no identifier. The
// returned report is never nil; the error is non nil whenever the pass did not
// complete. Records resolved before an abort keep their identifiers.
func (r *Resolver) Resolve(ctx context.Context, c *gazetteer.Collection, mode Mode) (*Report, error) {
	p := &pass{Resolver: r, collection: c, report: &Report{}}

	if r.unavailable != nil {
		p.report.Status = StatusUnavailable
		p.message("The lookup service is unavailable for the rest of this session.")

		return p.report, r.unavailable
	}

	if err := c.Validate(); err != nil {
		p.report.Status = StatusInvalid

		return p.report, err
	}

	pending := c.Unresolved()
	p.report.Pending = len(pending)

	if len(pending) == 0 {
		return p.report, nil
	}

	if err := p.canary(ctx); err != nil {
		return p.report, err
	}

	unresolved, err := p.firstPass(ctx, pending)
	if err != nil {
		return p.report, err
	}

	if mode == Double && len(unresolved) > 0 {
		if err := p.secondPass(ctx, unresolved); err != nil {
			return p.report, err
		}
	}

	if len(p.report.Failed) > 0 {
		p.message("The following rows failed to look up correctly: %s", gazetteer.FormatRows(p.report.Failed))
	}

	return p.report, nil
}

func (p *pass) canary(ctx context.Context) error {
	switch o := p.client.FindNearest(ctx, CanaryPoint, geocode.FeatureAny).(type) {
	case geocode.Found:
		return nil
	case geocode.RateLimited:
		return p.abort(o)
	case geocode.InvalidCredentials:
		return p.abort(o)
	default:
		p.report.Status = StatusUnavailable
		p.message("The lookup service did not answer a known query (%s). Please check the connection and try again later.", geocode.Describe(o))

		return fmt.Errorf("%w: canary lookup: %s", ErrUnavailable, geocode.Describe(o))
	}
}

// firstPass returns the indexes still unresolved after it.
func (p *pass) firstPass(ctx context.Context, pending []int) ([]int, error) {
	var unresolved []int

	for n, i := range pending {
		rec := p.collection.Records[i]

		found, err := p.lookupRecord(ctx, i, rec)
		if err != nil {
			return nil, err
		}

		p.report.Queried++

		if found != nil {
			p.apply(rec, *found)
		}

		if !rec.Resolved() {
			unresolved = append(unresolved, i)
		}

		p.tick(n+1, len(pending))
	}

	return unresolved, nil
}

// lookupRecord queries populated places first and retries unrestricted when
// the result is missing or too far. It returns nil when neither attempt is
// usable; the row is then recorded as failed.
func (p *pass) lookupRecord(ctx context.Context, index int, rec *gazetteer.Record) (*geocode.Found, error) {
	point := rec.Point()
	if point == nil {
		p.report.Failed = append(p.report.Failed, gazetteer.RowNumber(index))

		return nil, nil
	}

	for _, feature := range []geocode.FeatureClass{geocode.FeaturePopulatedPlace, geocode.FeatureAny} {
		o, err := p.query(ctx, *point, feature)
		if err != nil {
			return nil, err
		}

		if found, ok := o.(geocode.Found); ok && found.DistanceKm < MaxDistanceKm {
			return &found, nil
		}
	}

	p.report.Failed = append(p.report.Failed, gazetteer.RowNumber(index))

	return nil, nil
}

func (p *pass) apply(rec *gazetteer.Record, found geocode.Found) {
	candidate := gazetteer.Candidate{
		Name:       found.Name,
		Identifier: found.Identifier,
		DistanceKm: found.DistanceKm,
	}

	if similarity.Similar(rec.Name, found.Name) {
		rec.Accept(candidate)
		p.report.Resolved++

		return
	}

	rec.Guess1 = &candidate
	p.report.Guessed++
}

// secondPass fills the second guess of the records left unresolved. The name
// test is not applied: a second guess always goes to manual review.
func (p *pass) secondPass(ctx context.Context, indexes []int) error {
	for n, i := range indexes {
		rec := p.collection.Records[i]

		point := rec.Point()
		if point == nil {
			continue
		}

		o, err := p.query(ctx, *point, geocode.FeatureAny)
		if err != nil {
			return err
		}

		if found, ok := o.(geocode.Found); ok {
			rec.Guess2 = &gazetteer.Candidate{
				Name:       found.Name,
				Identifier: found.Identifier,
				DistanceKm: found.DistanceKm,
			}
			p.report.SecondGuesses++
		}

		p.tick(n+1, len(indexes))
	}

	return nil
}

// query issues a lookup, repeating it once on a transient error. Outcomes that
// end the pass are returned as errors.
func (p *pass) query(ctx context.Context, point spatial.Point, feature geocode.FeatureClass) (geocode.Outcome, error) {
	if err := ctx.Err(); err != nil {
		p.report.Status = StatusAborted

		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	o := p.client.FindNearest(ctx, point, feature)
	if _, ok := o.(geocode.TransientError); ok {
		o = p.client.FindNearest(ctx, point, feature)
	}

	switch o.(type) {
	case geocode.Found, geocode.NoResult:
		return o, nil
	default:
		return nil, p.abort(o)
	}
}

// abort records the diagnostic for an outcome that ends the pass.
func (p *pass) abort(o geocode.Outcome) error {
	switch o := o.(type) {
	case geocode.RateLimited:
		p.report.Status = StatusUnavailable
		p.message("You have used up your %s available lookups. Please try again later.", o.Window)
		p.unavailable = fmt.Errorf("%w: %s", ErrUnavailable, o)

		return p.unavailable
	case geocode.InvalidCredentials:
		p.report.Status = StatusAborted
		p.message("Your username is invalid...please check the username and try again.")

		return fmt.Errorf("%w: invalid credentials: %s", ErrAborted, o.Message)
	case geocode.TransientError:
		p.report.Status = StatusAborted
		p.message("There is a problem with the lookup service right now. Please try again shortly.")

		return fmt.Errorf("%w: repeated transient error: %w", ErrAborted, o.Err)
	default:
		p.report.Status = StatusAborted
		p.message("Unexpected lookup outcome: %s", geocode.Describe(o))

		return fmt.Errorf("%w: %s", ErrAborted, geocode.Describe(o))
	}
}

func (p *pass) tick(done, total int) {
	if p.progress != nil {
		p.progress(done, total)
	}
}
