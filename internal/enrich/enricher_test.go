package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetbridge/provider-cli/internal/provider"
	"github.com/vetbridge/provider-cli/internal/resilience"
	"github.com/vetbridge/provider-cli/pkg/places"
)

// stubClient is a hand-rolled places.Client that records calls and serves
// canned responses per query / place id.
type stubClient struct {
	mu sync.Mutex

	searchCalls  int
	detailsCalls int

	lastQuery  string
	lastRegion string

	searchResults map[string][]places.Place
	searchErr     error
	details       map[string]*places.Place
	detailsErr    map[string]error
}

func (s *stubClient) SearchText(_ context.Context, query, regionCode string) ([]places.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	s.lastQuery = query
	s.lastRegion = regionCode
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.searchResults[query], nil
}

func (s *stubClient) Details(_ context.Context, placeID string) (*places.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailsCalls++
	if err := s.detailsErr[placeID]; err != nil {
		return nil, err
	}
	return s.details[placeID], nil
}

func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1}
}

func clinicA() provider.Provider {
	return provider.Provider{ID: "a", Name: "Clinic A", Country: "PH", City: "Manila"}
}

func clinicADetails() *places.Place {
	return &places.Place{
		ID:               "p1",
		DisplayName:      &places.DisplayName{Text: "Clinic A (Official)"},
		FormattedAddress: "123 Main St, Manila",
		Location:         &places.LatLng{Latitude: 14.6, Longitude: 121.0},
	}
}

func TestRun_EnrichesRecord(t *testing.T) {
	stub := &stubClient{
		searchResults: map[string][]places.Place{
			"Clinic A, Manila, PH": {{ID: "p1"}},
		},
		details: map[string]*places.Place{"p1": clinicADetails()},
	}

	e := New(stub, Options{Retry: noRetry()})
	out, report, err := e.Run(context.Background(), []provider.Provider{clinicA()})

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, report.Enriched)

	got := out[0]
	require.NotNil(t, got.Gmaps)
	assert.Equal(t, "p1", got.Gmaps.PlaceID)
	assert.Equal(t, "Clinic A (Official)", got.Gmaps.FormattedName)
	assert.Equal(t, "123 Main St, Manila", got.Gmaps.FormattedAddress)
	assert.Equal(t, &provider.LatLng{Lat: 14.6, Lng: 121.0}, got.Gmaps.Location)

	// Enrichment never writes top-level coordinates directly.
	assert.Nil(t, got.Lat)
	assert.Nil(t, got.Lng)
}

func TestRun_SkipsResolvedWithoutAPICall(t *testing.T) {
	stub := &stubClient{}
	rec := clinicA()
	rec.Gmaps = &provider.PlaceIdentity{PlaceID: "existing"}

	e := New(stub, Options{Retry: noRetry()})
	out, report, err := e.Run(context.Background(), []provider.Provider{rec})

	require.NoError(t, err)
	assert.Equal(t, rec, out[0])
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, stub.searchCalls)
	assert.Zero(t, stub.detailsCalls)
}

func TestRun_ForceReEnriches(t *testing.T) {
	stub := &stubClient{
		searchResults: map[string][]places.Place{
			"Clinic A, Manila, PH": {{ID: "p1"}},
		},
		details: map[string]*places.Place{"p1": clinicADetails()},
	}
	rec := clinicA()
	rec.Gmaps = &provider.PlaceIdentity{PlaceID: "stale", URL: "https://maps.example/stale"}

	e := New(stub, Options{Force: true, Retry: noRetry()})
	out, report, err := e.Run(context.Background(), []provider.Provider{rec})

	require.NoError(t, err)
	assert.Equal(t, 1, stub.searchCalls)
	assert.Equal(t, 1, stub.detailsCalls)
	assert.Equal(t, 1, report.Enriched)

	require.NotNil(t, out[0].Gmaps)
	assert.Equal(t, "p1", out[0].Gmaps.PlaceID)
	// Pre-existing fields absent from the fresh identity survive the overlay.
	assert.Equal(t, "https://maps.example/stale", out[0].Gmaps.URL)
}

func TestRun_OnlyFilterPassesOthersThrough(t *testing.T) {
	stub := &stubClient{
		searchResults: map[string][]places.Place{
			"Clinic A, Manila, PH": {{ID: "p1"}},
		},
		details: map[string]*places.Place{"p1": clinicADetails()},
	}
	other := provider.Provider{ID: "b", Name: "Clinic B", Country: "TH", City: "Bangkok"}

	e := New(stub, Options{Only: []string{"a"}, Retry: noRetry()})
	out, report, err := e.Run(context.Background(), []provider.Provider{clinicA(), other})

	require.NoError(t, err)
	assert.Equal(t, 1, stub.searchCalls)
	assert.True(t, out[0].Resolved())
	assert.Equal(t, other, out[1])
	assert.Equal(t, 1, report.Enriched)
	assert.Equal(t, 1, report.Skipped)
}

func TestRun_NoCandidatePassesThrough(t *testing.T) {
	stub := &stubClient{searchResults: map[string][]places.Place{}}

	e := New(stub, Options{Retry: noRetry()})
	out, report, err := e.Run(context.Background(), []provider.Provider{clinicA()})

	require.NoError(t, err)
	assert.Equal(t, clinicA(), out[0])
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"a"}, report.FailedIDs)
	assert.Zero(t, stub.detailsCalls)
}

func TestRun_DetailsFailureDegradesPerRecord(t *testing.T) {
	stub := &stubClient{
		searchResults: map[string][]places.Place{
			"Clinic A, Manila, PH":  {{ID: "p1"}},
			"Clinic B, Bangkok, TH": {{ID: "p2"}},
			"Clinic C, Cebu, PH":    {{ID: "p3"}},
		},
		details: map[string]*places.Place{
			"p1": clinicADetails(),
			"p3": {ID: "p3", FormattedAddress: "Cebu Address"},
		},
		detailsErr: map[string]error{"p2": errors.New("details backend down")},
	}
	in := []provider.Provider{
		clinicA(),
		{ID: "b", Name: "Clinic B", Country: "TH", City: "Bangkok"},
		{ID: "c", Name: "Clinic C", Country: "PH", City: "Cebu"},
	}

	e := New(stub, Options{Retry: noRetry()})
	out, report, err := e.Run(context.Background(), in)

	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, out[0].Resolved())
	assert.Equal(t, in[1], out[1])
	assert.True(t, out[2].Resolved())
	assert.Equal(t, 2, report.Enriched)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"b"}, report.FailedIDs)
}

func TestRun_SearchErrorPassesThrough(t *testing.T) {
	stub := &stubClient{searchErr: errors.New("quota exhausted")}

	e := New(stub, Options{Retry: noRetry()})
	out, report, err := e.Run(context.Background(), []provider.Provider{clinicA()})

	require.NoError(t, err)
	assert.Equal(t, clinicA(), out[0])
	assert.Equal(t, 1, report.Failed)
}

func TestRun_PreservesOrderWithConcurrency(t *testing.T) {
	results := make(map[string][]places.Place)
	details := make(map[string]*places.Place)
	var in []provider.Provider
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		rec := provider.Provider{ID: id, Name: "Clinic " + id, Country: "PH", City: "Manila"}
		in = append(in, rec)
		pid := "place-" + id
		results[composeQuery(rec)] = []places.Place{{ID: pid}}
		details[pid] = &places.Place{ID: pid}
	}
	stub := &stubClient{searchResults: results, details: details}

	e := New(stub, Options{Concurrency: 4, Retry: noRetry()})
	out, report, err := e.Run(context.Background(), in)

	require.NoError(t, err)
	require.Len(t, out, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, out[i].ID)
		require.NotNil(t, out[i].Gmaps)
		assert.Equal(t, "place-"+id, out[i].Gmaps.PlaceID)
	}
	assert.Equal(t, len(ids), report.Enriched)
}

func TestRun_ContextCancellation(t *testing.T) {
	stub := &stubClient{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(stub, Options{Retry: noRetry()})
	_, _, err := e.Run(ctx, []provider.Provider{clinicA()})

	require.Error(t, err)
}

func TestRun_RetriesTransientAPIError(t *testing.T) {
	attempts := 0
	stub := &retryStub{
		fail: func() error {
			attempts++
			if attempts == 1 {
				return &places.APIError{StatusCode: 429, Body: "rate limited"}
			}
			return nil
		},
	}

	e := New(stub, Options{Retry: resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: 1, JitterFraction: 0}})
	out, report, err := e.Run(context.Background(), []provider.Provider{clinicA()})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Enriched)
	assert.True(t, out[0].Resolved())
	assert.Equal(t, 2, attempts)
}

// retryStub fails search according to fail(), then serves a fixed result.
type retryStub struct {
	fail func() error
}

func (s *retryStub) SearchText(context.Context, string, string) ([]places.Place, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	return []places.Place{{ID: "p1"}}, nil
}

func (s *retryStub) Details(context.Context, string) (*places.Place, error) {
	return clinicADetails(), nil
}

func TestComposeQuery(t *testing.T) {
	assert.Equal(t, "Clinic A, Manila, PH", composeQuery(clinicA()))

	withRegion := clinicA()
	withRegion.RegionTag = "NCR"
	assert.Equal(t, "Clinic A, Manila, NCR, PH", composeQuery(withRegion))
}

func TestFirstRegionCode(t *testing.T) {
	assert.Equal(t, "PH", firstRegionCode("PH,TH"))
	assert.Equal(t, "PH", firstRegionCode(" PH , TH "))
	assert.Equal(t, "TH", firstRegionCode(",TH"))
	assert.Equal(t, "", firstRegionCode(""))
}

func TestIdentityFromPlace(t *testing.T) {
	assert.Nil(t, identityFromPlace(nil))
	assert.Nil(t, identityFromPlace(&places.Place{FormattedAddress: "no id"}))

	got := identityFromPlace(&places.Place{
		ID:                       "p1",
		DisplayName:              &places.DisplayName{Text: "Clinic A"},
		GoogleMapsURI:            "https://maps.example/p1",
		InternationalPhoneNumber: "+63 2 555 0100",
	})
	require.NotNil(t, got)
	assert.Equal(t, "p1", got.PlaceID)
	assert.Equal(t, "Clinic A", got.FormattedName)
	assert.Equal(t, "https://maps.example/p1", got.URL)
	assert.Equal(t, "+63 2 555 0100", got.InternationalPhone)
	assert.Nil(t, got.Location)
	assert.Empty(t, got.FormattedAddress)
}
