package query

import (
	"encoding/json"
	"testing"
)

func TestFallback(t *testing.T) {
	p := Fallback("rust people")

	if p.Intent != General {
		t.Errorf("expected general intent, got %s", p.Intent)
	}
	if p.Confidence != FallbackConfidence {
		t.Errorf("expected confidence %v, got %v", FallbackConfidence, p.Confidence)
	}
	if p.FreeformQuery != "rust people" || p.OriginalQuery != "rust people" {
		t.Errorf("unexpected queries: %q %q", p.FreeformQuery, p.OriginalQuery)
	}
	if len(p.Entities()) != 0 || p.Availability.IsSet() || !p.Strict.IsEmpty() {
		t.Errorf("expected empty structure, got %s", p)
	}
	if p.HasStructure() {
		t.Error("fallback must not carry structure")
	}
}

func TestParsed_Queries(t *testing.T) {
	p := Parsed{
		Companies:     []string{"Acme"},
		Locations:     []string{"Berlin"},
		Skills:        []string{"AI"},
		Interests:     []string{"music"},
		FreeformQuery: "developers",
	}

	if got := p.KeywordQuery(); got != "Acme Berlin AI music developers" {
		t.Errorf("keyword query = %q", got)
	}
	if got := p.SemanticQuery(); got != "developers Acme Berlin AI music" {
		t.Errorf("semantic query = %q", got)
	}
	if !p.HasStructure() {
		t.Error("expected structure")
	}
}

func TestParsed_QueriesSkipBlanks(t *testing.T) {
	p := Parsed{Skills: []string{" ", "go"}, FreeformQuery: ""}
	if got := p.KeywordQuery(); got != "go" {
		t.Errorf("keyword query = %q", got)
	}
	if got := (Parsed{}).SemanticQuery(); got != "" {
		t.Errorf("expected empty semantic query, got %q", got)
	}
}

func TestTri_JSON(t *testing.T) {
	var a Availability
	if err := json.Unmarshal([]byte(`{"hire":true,"collab":null,"hiring":false}`), &a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Hire != True || a.Collab != Unset || a.Hiring != False {
		t.Errorf("unexpected availability %+v", a)
	}

	var missing Availability
	if err := json.Unmarshal([]byte(`{}`), &missing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing.IsSet() {
		t.Error("missing keys must stay unset")
	}

	out, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"hire":true,"collab":null,"hiring":false}` {
		t.Errorf("unexpected json %s", out)
	}

	var bad Tri
	if err := json.Unmarshal([]byte(`"yes"`), &bad); err == nil {
		t.Error("expected error for non-boolean")
	}
}

func TestTri_Ptr(t *testing.T) {
	if Unset.Ptr() != nil {
		t.Error("unset must be nil")
	}
	if p := True.Ptr(); p == nil || !*p {
		t.Error("expected true pointer")
	}
	if v, ok := TriOf(false).Bool(); v || !ok {
		t.Error("expected set false")
	}
}

func TestIntent_IsValid(t *testing.T) {
	for _, i := range []Intent{FindPeople, FindProjects, FindCompanies, General} {
		if !i.IsValid() {
			t.Errorf("%s should be valid", i)
		}
	}
	if Intent("find_cats").IsValid() {
		t.Error("unknown intent should be invalid")
	}
}
