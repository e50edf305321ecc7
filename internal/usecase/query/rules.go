package query

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	domquery "github.com/kailas-cloud/dirdex/internal/domain/search/query"
)

// strictMarker matches words that turn the following entity into a hard constraint.
var strictMarker = regexp.MustCompile(`(?i)\b(only|exclusively|just|solely|must\s+be)\b`)

// clauseBreak ends the scope of a strictness marker.
var clauseBreak = regexp.MustCompile(`[,;.!?]|\b(?i:and|but|or|who|with)\b`)

func isEmptyOutput(p domquery.Parsed) bool {
	return len(p.Entities()) == 0 && strings.TrimSpace(p.FreeformQuery) == "" &&
		!p.Availability.IsSet() && p.Strict.IsEmpty()
}

// normalize trims and de-duplicates lists, clamps confidence and repairs
// intent and freeform text.
func normalize(p domquery.Parsed, original string) domquery.Parsed {
	p.Companies = dedupe(p.Companies)
	p.Locations = dedupe(p.Locations)
	p.Skills = dedupe(p.Skills)
	p.Interests = dedupe(p.Interests)
	p.Strict.Companies = dedupe(p.Strict.Companies)
	p.Strict.Locations = dedupe(p.Strict.Locations)
	p.Strict.Skills = dedupe(p.Strict.Skills)

	if !p.Intent.IsValid() {
		p.Intent = domquery.General
	}
	switch {
	case math.IsNaN(p.Confidence) || p.Confidence < 0:
		p.Confidence = 0
	case p.Confidence > 1:
		p.Confidence = 1
	}
	p.FreeformQuery = strings.TrimSpace(p.FreeformQuery)
	if p.FreeformQuery == "" {
		p.FreeformQuery = original
	}
	p.OriginalQuery = original
	return p
}

// applyRules promotes marked entities to strict and keeps strict a subset of loose.
func applyRules(p domquery.Parsed, original string) domquery.Parsed {
	for _, clause := range strictClauses(original) {
		p.Strict.Locations = promote(p.Strict.Locations, p.Locations, clause)
		p.Strict.Skills = promote(p.Strict.Skills, p.Skills, clause)
		p.Strict.Companies = promote(p.Strict.Companies, p.Companies, clause)
		promoteAvailability(&p, clause)
	}

	p.Locations = union(p.Locations, p.Strict.Locations)
	p.Skills = union(p.Skills, p.Strict.Skills)
	p.Companies = union(p.Companies, p.Strict.Companies)
	fillAvailability(&p.Availability.Hire, p.Strict.Availability.Hire)
	fillAvailability(&p.Availability.Collab, p.Strict.Availability.Collab)
	fillAvailability(&p.Availability.Hiring, p.Strict.Availability.Hiring)
	return p
}

// strictClauses returns the lowercased text each marker governs: the clause
// after it, or the clause before it when the marker closes its clause
// ("Rust developers only").
func strictClauses(q string) []string {
	var out []string
	for _, loc := range strictMarker.FindAllStringIndex(q, -1) {
		after := q[loc[1]:]
		if br := clauseBreak.FindStringIndex(after); br != nil {
			after = after[:br[0]]
		}
		if strings.TrimSpace(after) != "" {
			out = append(out, strings.ToLower(after))
			continue
		}

		before := q[:loc[0]]
		if all := clauseBreak.FindAllStringIndex(before, -1); len(all) > 0 {
			before = before[all[len(all)-1][1]:]
		}
		if strings.TrimSpace(before) != "" {
			out = append(out, strings.ToLower(before))
		}
	}
	return out
}

func promote(strict, loose []string, clause string) []string {
	for _, e := range loose {
		if containsPhrase(clause, strings.ToLower(e)) && !containsFold(strict, e) {
			strict = append(strict, e)
		}
	}
	return strict
}

func promoteAvailability(p *domquery.Parsed, clause string) {
	promoteFlag(clause, []string{"hire", "available"}, p.Availability.Hire, &p.Strict.Availability.Hire)
	promoteFlag(clause, []string{"collab"}, p.Availability.Collab, &p.Strict.Availability.Collab)
	promoteFlag(clause, []string{"hiring"}, p.Availability.Hiring, &p.Strict.Availability.Hiring)
}

func promoteFlag(clause string, words []string, loose domquery.Tri, strict *domquery.Tri) {
	if !loose.IsSet() || strict.IsSet() {
		return
	}
	for _, w := range words {
		if strings.Contains(clause, w) {
			*strict = loose
			return
		}
	}
}

func fillAvailability(loose *domquery.Tri, strict domquery.Tri) {
	if strict.IsSet() && !loose.IsSet() {
		*loose = strict
	}
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !containsFold(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func union(loose, strict []string) []string {
	for _, s := range strict {
		if !containsFold(loose, s) {
			loose = append(loose, s)
		}
	}
	return loose
}

func containsFold(values []string, v string) bool {
	for _, x := range values {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}
