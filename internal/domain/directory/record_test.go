package directory

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/dirdex/internal/domain"
)

func TestDocumentID_RoundTrip(t *testing.T) {
	id := DocumentID(KindProject, "p-7")
	if id != "project:p-7" {
		t.Fatalf("unexpected id %q", id)
	}

	kind, raw, err := ParseDocumentID(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindProject || raw != "p-7" {
		t.Errorf("got %s %s", kind, raw)
	}
}

func TestParseDocumentID_Invalid(t *testing.T) {
	for _, in := range []string{"", "profile", "profile:", "team:1"} {
		_, _, err := ParseDocumentID(in)
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("%q: expected ErrInvalidRequest, got %v", in, err)
		}
	}
}

func TestRecord_SearchText(t *testing.T) {
	r := Record{
		Kind:        KindProfile,
		ID:          "1",
		DisplayName: "Ada",
		Headline:    "  ",
		Location:    "Berlin",
		Skills:      []string{"Go", "Rust"},
		Interests:   []string{"music"},
	}
	if got := r.SearchText(); got != "Ada Berlin Go Rust music" {
		t.Errorf("unexpected search text %q", got)
	}
	if r.DocumentID() != "profile:1" {
		t.Errorf("unexpected document id %q", r.DocumentID())
	}
}

func TestRecord_RerankText(t *testing.T) {
	profile := Record{Kind: KindProfile, DisplayName: "Ada", Headline: "Engineer", Bio: "Builds compilers"}
	got := profile.RerankText()
	if got != "Name: Ada\nHeadline: Engineer\nBio: Builds compilers" {
		t.Errorf("unexpected profile text %q", got)
	}

	project := Record{Kind: KindProject, DisplayName: "dirdex", Headline: "search", Skills: []string{"go", "bm25"}}
	got = project.RerankText()
	if !strings.HasPrefix(got, "Title: dirdex\nOneliner: search") || !strings.Contains(got, "Tags: go, bm25") {
		t.Errorf("unexpected project text %q", got)
	}
}

func TestRecord_ContentHashTracksSearchText(t *testing.T) {
	a := Record{Kind: KindProfile, DisplayName: "Ada"}
	b := a
	b.Bio = "new bio"
	if a.ContentHash() == b.ContentHash() {
		t.Error("expected hash to change with content")
	}
	b.CreatedAt = b.CreatedAt.AddDate(1, 0, 0)
	b.Bio = ""
	if a.ContentHash() != b.ContentHash() {
		t.Error("expected hash to ignore non-searchable fields")
	}
}

func TestFilters(t *testing.T) {
	yes := true
	if !(Filters{}).IsEmpty() {
		t.Error("expected empty filters")
	}
	f := Filters{Skills: []string{"rust"}}
	if f.IsEmpty() || !f.AppliesTo(KindProject) {
		t.Error("skill filters apply to projects")
	}
	f = Filters{Locations: []string{"berlin"}}
	if f.AppliesTo(KindProject) || !f.AppliesTo(KindProfile) {
		t.Error("location filters exclude projects")
	}
	f = Filters{Collab: &yes}
	if !f.AppliesTo(KindProject) {
		t.Error("collab filters apply to projects")
	}
}
