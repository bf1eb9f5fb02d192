package provider

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "providers.json")

	in := []Provider{
		{ID: "a", Name: "Clinic A", Country: "PH", City: "Manila", Lat: f64(14.5), Lng: f64(121.0)},
		{
			ID: "b", Name: "Clinic B", Country: "TH", City: "Bangkok",
			RegionTag: "north", Phone: "+66 2 000 0000",
			Gmaps: &PlaceIdentity{PlaceID: "p1", Location: &LatLng{Lat: 13.7, Lng: 100.5}},
		},
	}

	require.NoError(t, Write(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWrite_OmitsAbsentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.json")

	require.NoError(t, Write(path, []Provider{
		{ID: "a", Name: "Clinic A", Country: "PH", City: "Manila"},
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "lat")
	assert.NotContains(t, string(raw), "gmaps")
	assert.NotContains(t, string(raw), "null")
	assert.Contains(t, string(raw), `"id": "a"`)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.json")
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestPrint_MatchesWriteFormat(t *testing.T) {
	providers := []Provider{{ID: "a", Name: "Clinic A", Country: "PH", City: "Manila"}}

	path := filepath.Join(t.TempDir(), "providers.json")
	require.NoError(t, Write(path, providers))
	written, err := os.ReadFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, providers))

	assert.Equal(t, string(written), buf.String())
}
