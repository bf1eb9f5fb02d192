package provider

import "fmt"

// Issue describes one integrity problem found in a dataset. Index is the
// record's position in the file; ID may be empty when the id itself is the
// problem.
type Issue struct {
	Index   int
	ID      string
	Message string
}

func (i Issue) String() string {
	if i.ID == "" {
		return fmt.Sprintf("record %d: %s", i.Index, i.Message)
	}
	return fmt.Sprintf("record %d (%s): %s", i.Index, i.ID, i.Message)
}

// Validate checks dataset integrity: required fields, unique ids, and sane
// coordinates. It reports every issue rather than stopping at the first.
func Validate(providers []Provider) []Issue {
	var issues []Issue
	seen := make(map[string]int, len(providers))

	for i, p := range providers {
		if p.ID == "" {
			issues = append(issues, Issue{Index: i, Message: "missing id"})
		} else if prev, dup := seen[p.ID]; dup {
			issues = append(issues, Issue{Index: i, ID: p.ID, Message: fmt.Sprintf("duplicate id, first seen at record %d", prev)})
		} else {
			seen[p.ID] = i
		}

		if p.Name == "" {
			issues = append(issues, Issue{Index: i, ID: p.ID, Message: "missing name"})
		}
		if p.Country == "" {
			issues = append(issues, Issue{Index: i, ID: p.ID, Message: "missing country"})
		}
		if p.City == "" {
			issues = append(issues, Issue{Index: i, ID: p.ID, Message: "missing city"})
		}

		if (p.Lat == nil) != (p.Lng == nil) {
			issues = append(issues, Issue{Index: i, ID: p.ID, Message: "lat and lng must be set together"})
		}
		if p.Lat != nil && (*p.Lat < -90 || *p.Lat > 90) {
			issues = append(issues, Issue{Index: i, ID: p.ID, Message: fmt.Sprintf("lat %v out of range", *p.Lat)})
		}
		if p.Lng != nil && (*p.Lng < -180 || *p.Lng > 180) {
			issues = append(issues, Issue{Index: i, ID: p.ID, Message: fmt.Sprintf("lng %v out of range", *p.Lng)})
		}

		if loc := locationOf(p); loc != nil {
			if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
				issues = append(issues, Issue{Index: i, ID: p.ID, Message: fmt.Sprintf("gmaps.location (%v, %v) out of range", loc.Lat, loc.Lng)})
			}
		}
	}

	return issues
}

func locationOf(p Provider) *LatLng {
	if p.Gmaps == nil {
		return nil
	}
	return p.Gmaps.Location
}
