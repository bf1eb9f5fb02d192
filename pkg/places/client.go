// Package places is a minimal client for the Google Places API (New), v1:
// text search plus place details, the two calls the enrichment pipeline needs.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// fieldMask lists the place fields the pipeline consumes. Both calls request
// the same set so search candidates and details stay interchangeable.
const fieldMask = "id,displayName,formattedAddress,location,googleMapsUri,internationalPhoneNumber"

// searchMaxResults bounds the candidate list; the pipeline only ever uses the
// top-ranked candidate.
const searchMaxResults = 5

// Client performs Places API operations.
type Client interface {
	// SearchText runs a free-text place search, optionally biased to a
	// single region code, returning candidates in the API's relevance order.
	SearchText(ctx context.Context, query, regionCode string) ([]Place, error)

	// Details fetches the full field set for a place by ID.
	Details(ctx context.Context, placeID string) (*Place, error)
}

// Place is a place as returned by the API, search and details alike.
type Place struct {
	ID                       string       `json:"id"`
	DisplayName              *DisplayName `json:"displayName,omitempty"`
	FormattedAddress         string       `json:"formattedAddress,omitempty"`
	Location                 *LatLng      `json:"location,omitempty"`
	GoogleMapsURI            string       `json:"googleMapsUri,omitempty"`
	InternationalPhoneNumber string       `json:"internationalPhoneNumber,omitempty"`
}

// DisplayName holds the place's localized display name.
type DisplayName struct {
	Text string `json:"text"`
}

// LatLng is a coordinate pair in the API's wire shape.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// APIError is a non-2xx response from the Places API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("places: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchTextRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount"`
	RegionCode     string `json:"regionCode,omitempty"`
}

type searchTextResponse struct {
	Places []Place `json:"places"`
}

func (c *httpClient) SearchText(ctx context.Context, query, regionCode string) ([]Place, error) {
	body, err := json.Marshal(searchTextRequest{
		TextQuery:      query,
		MaxResultCount: searchMaxResults,
		RegionCode:     regionCode,
	})
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", "places.id,places.displayName,places.formattedAddress,places.location,places.googleMapsUri,places.internationalPhoneNumber")

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var result searchTextResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}

	return result.Places, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*Place, error) {
	u := fmt.Sprintf("%s/places/%s?fields=%s", c.baseURL, url.PathEscape(placeID), url.QueryEscape(fieldMask))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var result Place
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
