package directory

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/dirdex/internal/domain"
)

// Kind distinguishes the two record types in the directory.
type Kind string

const (
	// KindProfile is a person.
	KindProfile Kind = "profile"
	// KindProject is a project.
	KindProject Kind = "project"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return k == KindProfile || k == KindProject
}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidRequest, s)
	}
	return k, nil
}

// DocumentID namespaces a record id with its kind ("profile:42").
func DocumentID(kind Kind, id string) string {
	return string(kind) + ":" + id
}

// ParseDocumentID splits a namespaced id into kind and record id.
func ParseDocumentID(docID string) (Kind, string, error) {
	prefix, id, ok := strings.Cut(docID, ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("%w: malformed document id %q", domain.ErrInvalidRequest, docID)
	}
	kind, err := ParseKind(prefix)
	if err != nil {
		return "", "", err
	}
	return kind, id, nil
}

// Availability flags. For projects, Collab carries "looking for collaborators"
// and Hiring carries "hiring".
type Availability struct {
	Hire   bool
	Collab bool
	Hiring bool
}

// Record is a profile or project as read from the directory store.
//
// Profiles use DisplayName, Headline, Bio, Location, Company, Skills and
// Interests. Projects map title to DisplayName, oneliner to Headline,
// description to Bio and tags to Skills, and set OwnerID.
type Record struct {
	Kind         Kind
	ID           string
	DisplayName  string
	Headline     string
	Bio          string
	Location     string
	Company      string
	Skills       []string
	Interests    []string
	OwnerID      string
	Availability Availability
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DocumentID returns the namespaced id.
func (r Record) DocumentID() string {
	return DocumentID(r.Kind, r.ID)
}

// SearchText flattens every searchable field into one blob. It feeds both the
// keyword index and the embedder.
func (r Record) SearchText() string {
	parts := []string{r.DisplayName, r.Headline, r.Bio, r.Location, r.Company}
	parts = append(parts, r.Skills...)
	parts = append(parts, r.Interests...)
	return joinNonEmpty(parts, " ")
}

// RerankText is the labelled text handed to the reranker.
func (r Record) RerankText() string {
	var lines []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, label+": "+value)
		}
	}

	switch r.Kind {
	case KindProject:
		add("Title", r.DisplayName)
		add("Oneliner", r.Headline)
		add("Description", r.Bio)
		add("Tags", strings.Join(r.Skills, ", "))
	default:
		add("Name", r.DisplayName)
		add("Headline", r.Headline)
		add("Bio", r.Bio)
		add("Location", r.Location)
		add("Skills", strings.Join(r.Skills, ", "))
	}
	return strings.Join(lines, "\n")
}

// ContentHash identifies the current searchable content.
func (r Record) ContentHash() string {
	return domain.ContentHash(r.SearchText())
}

func joinNonEmpty(parts []string, sep string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
