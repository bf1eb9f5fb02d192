// Package merge folds an enrichment-output dataset back onto the curated base
// dataset. The base file is the source of truth for every curator-authored
// field; enrichment only ever contributes the gmaps block and, under an
// explicit flag, the coordinates derived from it.
package merge

import "github.com/vetbridge/provider-cli/internal/provider"

// Options controls merge precedence.
type Options struct {
	// OverwriteGeo replaces curator lat/lng with the enriched
	// gmaps.location when one exists. Off by default: rough curator
	// coordinates are preserved.
	OverwriteGeo bool
}

// Merge combines base and enriched record-by-record, keyed by id. Output has
// the same cardinality and order as base; enriched entries with ids absent
// from base (or with no id at all) are ignored. Running Merge twice with the
// same inputs yields identical output.
func Merge(base, enriched []provider.Provider, opts Options) []provider.Provider {
	byID := indexByID(enriched)

	out := make([]provider.Provider, len(base))
	for i, b := range base {
		e, ok := byID[b.ID]
		if !ok {
			out[i] = b.Clone()
			continue
		}
		out[i] = mergeOne(b, e, opts.OverwriteGeo)
	}
	return out
}

// mergeOne overlays one enriched record onto its base counterpart. Curated
// fields come exclusively from base; gmaps merges field-by-field with
// enriched values winning.
func mergeOne(b, e provider.Provider, overwriteGeo bool) provider.Provider {
	out := b.Clone()

	if e.Gmaps != nil {
		out.Gmaps = provider.Overlay(b.Gmaps, e.Gmaps)
	}

	if overwriteGeo && e.Gmaps != nil && e.Gmaps.Location != nil {
		lat := e.Gmaps.Location.Lat
		lng := e.Gmaps.Location.Lng
		out.Lat = &lat
		out.Lng = &lng
	}

	return out
}

// Matched reports how many base records have an enriched counterpart by id,
// the number of records Merge overlays.
func Matched(base, enriched []provider.Provider) int {
	byID := indexByID(enriched)
	n := 0
	for _, b := range base {
		if _, ok := byID[b.ID]; ok {
			n++
		}
	}
	return n
}

// indexByID keys records by id, skipping entries without one. Later
// duplicates win, matching a lookup built by overwriting.
func indexByID(providers []provider.Provider) map[string]provider.Provider {
	m := make(map[string]provider.Provider, len(providers))
	for _, p := range providers {
		if p.ID == "" {
			continue
		}
		m[p.ID] = p
	}
	return m
}
