package search

import (
	"strings"

	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/domain/search/query"
	"github.com/kailas-cloud/dirdex/internal/domain/search/result"
)

// applyStrict drops results that violate any strict constraint. Matching is
// case-insensitive. Projects carry no location or company, so a strict
// location or company excludes every project.
func applyStrict(results []result.Result, strict query.Strict) []result.Result {
	if strict.IsEmpty() {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if matchesStrict(r.Record(), strict) {
			out = append(out, r)
		}
	}
	return out
}

func matchesStrict(rec directory.Record, strict query.Strict) bool {
	if len(strict.Locations) > 0 {
		if rec.Kind == directory.KindProject || !anyContained(rec.Location, strict.Locations) {
			return false
		}
	}
	if len(strict.Companies) > 0 {
		if rec.Kind == directory.KindProject {
			return false
		}
		if !anyContained(rec.Headline, strict.Companies) &&
			!anyContained(rec.DisplayName, strict.Companies) &&
			!anyContained(rec.Company, strict.Companies) {
			return false
		}
	}
	if len(strict.Skills) > 0 && !skillsMatch(rec.Skills, strict.Skills) {
		return false
	}
	return availabilityMatches(rec.Availability, strict.Availability)
}

// anyContained reports whether field contains any of values.
func anyContained(field string, values []string) bool {
	field = strings.ToLower(field)
	if field == "" {
		return false
	}
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" && strings.Contains(field, v) {
			return true
		}
	}
	return false
}

// skillsMatch reports whether any wanted skill and any record skill contain
// one another.
func skillsMatch(have, want []string) bool {
	for _, w := range want {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		for _, h := range have {
			h = strings.ToLower(strings.TrimSpace(h))
			if h != "" && (strings.Contains(h, w) || strings.Contains(w, h)) {
				return true
			}
		}
	}
	return false
}

func availabilityMatches(have directory.Availability, want query.Availability) bool {
	flagOK := func(t query.Tri, v bool) bool {
		w, ok := t.Bool()
		return !ok || w == v
	}
	return flagOK(want.Hire, have.Hire) &&
		flagOK(want.Collab, have.Collab) &&
		flagOK(want.Hiring, have.Hiring)
}
