// Package provider defines the curated provider record shape shared by the
// enrichment and merge tools, plus the JSON dataset files they exchange.
package provider

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlaceIdentity is the canonical place identity resolved from Google Places:
// stable place ID, authoritative display values, and exact geometry. Only
// fields the API actually returned are set; absent fields are omitted from
// JSON rather than written as null.
type PlaceIdentity struct {
	PlaceID            string  `json:"placeId,omitempty"`
	URL                string  `json:"url,omitempty"`
	FormattedName      string  `json:"formattedName,omitempty"`
	FormattedAddress   string  `json:"formattedAddress,omitempty"`
	InternationalPhone string  `json:"internationalPhone,omitempty"`
	Location           *LatLng `json:"location,omitempty"`
}

// Clone returns a deep copy of the identity.
func (g *PlaceIdentity) Clone() *PlaceIdentity {
	if g == nil {
		return nil
	}
	out := *g
	if g.Location != nil {
		loc := *g.Location
		out.Location = &loc
	}
	return &out
}

// Overlay returns base with next's set fields applied on top, field by field.
// Fields absent in next are retained from base. Both inputs are left
// untouched; either may be nil.
func Overlay(base, next *PlaceIdentity) *PlaceIdentity {
	if next == nil {
		return base.Clone()
	}
	out := base.Clone()
	if out == nil {
		out = &PlaceIdentity{}
	}
	if next.PlaceID != "" {
		out.PlaceID = next.PlaceID
	}
	if next.URL != "" {
		out.URL = next.URL
	}
	if next.FormattedName != "" {
		out.FormattedName = next.FormattedName
	}
	if next.FormattedAddress != "" {
		out.FormattedAddress = next.FormattedAddress
	}
	if next.InternationalPhone != "" {
		out.InternationalPhone = next.InternationalPhone
	}
	if next.Location != nil {
		loc := *next.Location
		out.Location = &loc
	}
	return out
}

// Provider is one real-world healthcare facility in the curated directory.
// The curator-authored fields (id through caution, plus the rough lat/lng
// estimates) are never invented or rewritten by the pipeline.
type Provider struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Country   string         `json:"country"`
	City      string         `json:"city"`
	RegionTag string         `json:"regionTag,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Policy    string         `json:"policy,omitempty"`
	Caution   string         `json:"caution,omitempty"`
	Lat       *float64       `json:"lat,omitempty"`
	Lng       *float64       `json:"lng,omitempty"`
	Gmaps     *PlaceIdentity `json:"gmaps,omitempty"`
}

// Resolved reports whether the record already carries a place identity.
// Resolved records are skipped on re-enrichment unless forced.
func (p Provider) Resolved() bool {
	return p.Gmaps != nil && p.Gmaps.PlaceID != ""
}

// Clone returns a deep copy of the record.
func (p Provider) Clone() Provider {
	out := p
	if p.Lat != nil {
		lat := *p.Lat
		out.Lat = &lat
	}
	if p.Lng != nil {
		lng := *p.Lng
		out.Lng = &lng
	}
	out.Gmaps = p.Gmaps.Clone()
	return out
}
