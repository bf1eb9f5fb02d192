// Package enrich resolves canonical Google Places identity for provider
// records that lack one. Every input record appears exactly once in the
// output, in input order, either enriched or passed through unchanged; a
// failure on one record never affects another.
package enrich

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"go.uber.org/zap"

	"github.com/vetbridge/provider-cli/internal/provider"
	"github.com/vetbridge/provider-cli/internal/resilience"
	"github.com/vetbridge/provider-cli/pkg/places"
)

// Options configures an enrichment run.
type Options struct {
	// CountryBias is a comma-separated list of region codes. The Places API
	// accepts a single bias value, so only the first entry is sent upstream;
	// the rest are ignored. Known constraint, kept from the curation
	// workflow's tooling.
	CountryBias string

	// Only restricts processing to the listed record ids. Records outside
	// the list pass through unchanged. Empty means all records.
	Only []string

	// Force re-resolves records that already carry a place identity.
	Force bool

	// Concurrency bounds in-flight record lookups. Values below 1 mean
	// sequential. The pacing interval is shared across workers, so raising
	// concurrency never raises the request rate.
	Concurrency int

	// Interval is the courtesy delay between Places requests. Zero disables
	// pacing.
	Interval time.Duration

	// Retry configures per-call retry of transient API failures.
	Retry resilience.RetryConfig
}

// Report summarizes an enrichment run.
type Report struct {
	Enriched  int
	Skipped   int
	Failed    int
	FailedIDs []string
}

// Enricher resolves place identity for provider records.
type Enricher struct {
	client  places.Client
	opts    Options
	limiter *rate.Limiter
}

// New creates an Enricher backed by the given Places client.
func New(client places.Client, opts Options) *Enricher {
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	if opts.Retry.ShouldRetry == nil {
		opts.Retry.ShouldRetry = shouldRetryPlaces
	}
	return &Enricher{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run enriches the dataset. The returned slice has the same length and order
// as the input. Per-record failures are logged and counted in the report;
// only context cancellation makes Run itself fail.
func (e *Enricher) Run(ctx context.Context, in []provider.Provider) ([]provider.Provider, *Report, error) {
	only := make(map[string]struct{}, len(e.opts.Only))
	for _, id := range e.opts.Only {
		if id = strings.TrimSpace(id); id != "" {
			only[id] = struct{}{}
		}
	}

	out := make([]provider.Provider, len(in))
	var mu sync.Mutex
	report := &Report{}

	concurrency := e.opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range in {
		rec := in[i]

		if len(only) > 0 {
			if _, listed := only[rec.ID]; !listed {
				out[i] = rec
				mu.Lock()
				report.Skipped++
				mu.Unlock()
				continue
			}
		}

		if rec.Resolved() && !e.opts.Force {
			out[i] = rec
			mu.Lock()
			report.Skipped++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			if err := e.limiter.Wait(gctx); err != nil {
				return err
			}

			enriched, err := e.enrichOne(gctx, rec)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("enrich failed, passing record through",
					zap.String("id", rec.ID),
					zap.Error(err),
				)
				out[i] = rec
				report.Failed++
				report.FailedIDs = append(report.FailedIDs, rec.ID)
				return nil
			}
			out[i] = enriched
			report.Enriched++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Strings(report.FailedIDs)
	return out, report, nil
}

// errNoCandidate marks a search that returned no usable candidate. Treated
// the same as any other per-record failure: warn and pass through.
var errNoCandidate = errors.New("no search candidate")

// enrichOne resolves identity for a single record: text search, take the
// top-ranked candidate, fetch its details, overlay the resulting identity
// onto any pre-existing gmaps block. No partial state: either a full
// identity attaches or the record comes back untouched via the error path.
func (e *Enricher) enrichOne(ctx context.Context, rec provider.Provider) (provider.Provider, error) {
	query := composeQuery(rec)
	region := firstRegionCode(e.opts.CountryBias)

	retry := e.opts.Retry
	retry.OnRetry = resilience.RetryLogger("places", "search")

	candidates, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]places.Place, error) {
		return e.client.SearchText(ctx, query, region)
	})
	if err != nil {
		return provider.Provider{}, err
	}
	if len(candidates) == 0 || candidates[0].ID == "" {
		return provider.Provider{}, errNoCandidate
	}

	retry.OnRetry = resilience.RetryLogger("places", "details")
	details, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*places.Place, error) {
		return e.client.Details(ctx, candidates[0].ID)
	})
	if err != nil {
		return provider.Provider{}, err
	}

	identity := identityFromPlace(details)
	if identity == nil {
		return provider.Provider{}, errNoCandidate
	}

	enriched := rec.Clone()
	enriched.Gmaps = provider.Overlay(rec.Gmaps, identity)
	return enriched, nil
}

// composeQuery joins the record's descriptive fields into the text-search
// query, skipping blanks, in a fixed order.
func composeQuery(rec provider.Provider) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{rec.Name, rec.City, rec.RegionTag, rec.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// firstRegionCode reduces a comma-separated bias list to the single region
// code the API accepts.
func firstRegionCode(bias string) string {
	for _, code := range strings.Split(bias, ",") {
		if code = strings.TrimSpace(code); code != "" {
			return code
		}
	}
	return ""
}

// identityFromPlace maps an API place onto a PlaceIdentity, keeping only the
// fields the API actually returned. A payload without an id yields nil.
func identityFromPlace(p *places.Place) *provider.PlaceIdentity {
	if p == nil || p.ID == "" {
		return nil
	}

	identity := &provider.PlaceIdentity{PlaceID: p.ID}
	if p.GoogleMapsURI != "" {
		identity.URL = p.GoogleMapsURI
	}
	if p.DisplayName != nil && p.DisplayName.Text != "" {
		identity.FormattedName = p.DisplayName.Text
	}
	if p.FormattedAddress != "" {
		identity.FormattedAddress = p.FormattedAddress
	}
	if p.InternationalPhoneNumber != "" {
		identity.InternationalPhone = p.InternationalPhoneNumber
	}
	if p.Location != nil {
		identity.Location = &provider.LatLng{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
	}
	return identity
}

// shouldRetryPlaces treats API 408/429/5xx and network-level failures as
// transient.
func shouldRetryPlaces(err error) bool {
	var apiErr *places.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}
