package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FallbackConfidence is the confidence assigned to a fallback parse.
const FallbackConfidence = 0.1

// Tri is a tri-state flag: unset, true or false. It marshals to null, true
// and false.
type Tri int8

// Tri values.
const (
	Unset Tri = iota
	True
	False
)

// TriOf converts a bool into a set Tri.
func TriOf(b bool) Tri {
	if b {
		return True
	}
	return False
}

// IsSet reports whether t carries a value.
func (t Tri) IsSet() bool { return t != Unset }

// Bool returns the value and whether it is set.
func (t Tri) Bool() (value, ok bool) {
	return t == True, t != Unset
}

// Ptr returns nil for Unset, otherwise a pointer to the value.
func (t Tri) Ptr() *bool {
	if t == Unset {
		return nil
	}
	v := t == True
	return &v
}

// MarshalJSON implements json.Marshaler.
func (t Tri) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tri) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*t = True
	case "false":
		*t = False
	case "null", `""`:
		*t = Unset
	default:
		return fmt.Errorf("invalid tri-state value %s", data)
	}
	return nil
}

// Intent is the kind of entity the user is looking for.
type Intent string

// Intent values.
const (
	FindPeople    Intent = "find_people"
	FindProjects  Intent = "find_projects"
	FindCompanies Intent = "find_companies"
	General       Intent = "general"
)

// IsValid checks if the intent is one of the supported values.
func (i Intent) IsValid() bool {
	return i == FindPeople || i == FindProjects || i == FindCompanies || i == General
}

// Availability holds the three availability flags.
type Availability struct {
	Hire   Tri `json:"hire"`
	Collab Tri `json:"collab"`
	Hiring Tri `json:"hiring"`
}

// IsSet reports whether any flag is set.
func (a Availability) IsSet() bool {
	return a.Hire.IsSet() || a.Collab.IsSet() || a.Hiring.IsSet()
}

// Strict holds the hard constraints. Every strict value also appears in the
// loose lists of the enclosing Parsed.
type Strict struct {
	Locations    []string     `json:"locations"`
	Skills       []string     `json:"skills"`
	Companies    []string     `json:"companies"`
	Availability Availability `json:"availability"`
}

// IsEmpty reports whether there are no strict constraints.
func (s Strict) IsEmpty() bool {
	return len(s.Locations) == 0 && len(s.Skills) == 0 && len(s.Companies) == 0 &&
		!s.Availability.IsSet()
}

// Parsed is the structured interpretation of a free-text query.
type Parsed struct {
	Companies     []string     `json:"companies"`
	Locations     []string     `json:"locations"`
	Skills        []string     `json:"skills"`
	Interests     []string     `json:"interests"`
	Availability  Availability `json:"availability"`
	Strict        Strict       `json:"strict_filters"`
	Intent        Intent       `json:"intent"`
	FreeformQuery string       `json:"freeform_query"`
	Confidence    float64      `json:"confidence"`
	OriginalQuery string       `json:"original_query"`
}

// Fallback is the parse used when structured extraction is unavailable.
func Fallback(original string) Parsed {
	return Parsed{
		Companies:     []string{},
		Locations:     []string{},
		Skills:        []string{},
		Interests:     []string{},
		Strict:        Strict{Locations: []string{}, Skills: []string{}, Companies: []string{}},
		Intent:        General,
		FreeformQuery: original,
		Confidence:    FallbackConfidence,
		OriginalQuery: original,
	}
}

// Entities returns companies, locations, skills and interests in that order.
func (p Parsed) Entities() []string {
	out := make([]string, 0, len(p.Companies)+len(p.Locations)+len(p.Skills)+len(p.Interests))
	out = append(out, p.Companies...)
	out = append(out, p.Locations...)
	out = append(out, p.Skills...)
	out = append(out, p.Interests...)
	return out
}

// KeywordQuery is the text sent to the keyword index: entities then freeform.
func (p Parsed) KeywordQuery() string {
	return joinQuery(append(p.Entities(), p.FreeformQuery))
}

// SemanticQuery is the text sent to the embedder: freeform then entities.
func (p Parsed) SemanticQuery() string {
	return joinQuery(append([]string{p.FreeformQuery}, p.Entities()...))
}

// HasStructure reports whether the parse carries anything a structured
// filter lookup can use.
func (p Parsed) HasStructure() bool {
	return len(p.Companies) > 0 || len(p.Locations) > 0 || len(p.Skills) > 0 ||
		p.Availability.IsSet() || !p.Strict.IsEmpty()
}

func joinQuery(parts []string) string {
	kept := parts[:0:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, " ")
}

// String renders the parse as compact JSON for logs.
func (p Parsed) String() string {
	b, err := json.Marshal(p)
	if err != nil {
		return p.OriginalQuery
	}
	return string(b)
}
