package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestResolved(t *testing.T) {
	assert.False(t, Provider{ID: "a"}.Resolved())
	assert.False(t, Provider{ID: "a", Gmaps: &PlaceIdentity{URL: "https://maps.example"}}.Resolved())
	assert.True(t, Provider{ID: "a", Gmaps: &PlaceIdentity{PlaceID: "p1"}}.Resolved())
}

func TestClone_DeepCopies(t *testing.T) {
	orig := Provider{
		ID:      "a",
		Name:    "Clinic A",
		Country: "PH",
		City:    "Manila",
		Lat:     f64(14.5),
		Lng:     f64(121.0),
		Gmaps: &PlaceIdentity{
			PlaceID:  "p1",
			Location: &LatLng{Lat: 14.6, Lng: 121.1},
		},
	}

	clone := orig.Clone()
	*clone.Lat = 99
	clone.Gmaps.PlaceID = "p2"
	clone.Gmaps.Location.Lat = 0

	assert.Equal(t, 14.5, *orig.Lat)
	assert.Equal(t, "p1", orig.Gmaps.PlaceID)
	assert.Equal(t, 14.6, orig.Gmaps.Location.Lat)
}

func TestOverlay_NextWinsFieldByField(t *testing.T) {
	base := &PlaceIdentity{
		PlaceID:          "p1",
		URL:              "https://maps.example/old",
		FormattedAddress: "Old Address",
	}
	next := &PlaceIdentity{
		PlaceID:       "p2",
		FormattedName: "Clinic A (Official)",
		Location:      &LatLng{Lat: 14.6, Lng: 121.0},
	}

	out := Overlay(base, next)
	require.NotNil(t, out)

	assert.Equal(t, "p2", out.PlaceID)
	assert.Equal(t, "Clinic A (Official)", out.FormattedName)
	assert.Equal(t, &LatLng{Lat: 14.6, Lng: 121.0}, out.Location)
	// Fields absent in next are retained from base.
	assert.Equal(t, "https://maps.example/old", out.URL)
	assert.Equal(t, "Old Address", out.FormattedAddress)
}

func TestOverlay_NilInputs(t *testing.T) {
	assert.Nil(t, Overlay(nil, nil))

	base := &PlaceIdentity{PlaceID: "p1"}
	out := Overlay(base, nil)
	require.NotNil(t, out)
	assert.Equal(t, "p1", out.PlaceID)
	assert.NotSame(t, base, out)

	next := &PlaceIdentity{PlaceID: "p2"}
	out = Overlay(nil, next)
	require.NotNil(t, out)
	assert.Equal(t, "p2", out.PlaceID)
}

func TestOverlay_DoesNotMutateInputs(t *testing.T) {
	base := &PlaceIdentity{PlaceID: "p1", Location: &LatLng{Lat: 1, Lng: 2}}
	next := &PlaceIdentity{Location: &LatLng{Lat: 3, Lng: 4}}

	out := Overlay(base, next)
	out.Location.Lat = 99

	assert.Equal(t, 1.0, base.Location.Lat)
	assert.Equal(t, 3.0, next.Location.Lat)
}
