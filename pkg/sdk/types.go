package dirdex

import "time"

// Kind distinguishes profiles from projects.
type Kind string

// Kind constants.
const (
	KindProfile Kind = "profile"
	KindProject Kind = "project"
)

// SortOrder controls result ordering.
type SortOrder string

// Sort order constants.
const (
	SortRelevance SortOrder = "relevance"
	SortRecent    SortOrder = "recent"
	SortName      SortOrder = "name"
	SortRandom    SortOrder = "random"
)

// Availability flags. For projects, Collab means "looking for
// collaborators" and Hiring means "hiring"; Hire is unused.
type Availability struct {
	Hire   bool
	Collab bool
	Hiring bool
}

// Record is a profile or a project.
//
// Projects map title to DisplayName, oneliner to Headline, description to
// Bio and tags to Skills.
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

// SearchOptions are per-query parameters. Zero values take defaults:
// page 1, 20 results, relevance order.
type SearchOptions struct {
	Page            int
	Limit           int
	Sort            SortOrder
	MaxResults      int
	IncludeProjects bool
	// Rerank overrides the client default when non-nil.
	Rerank *bool
}

// SearchResult is a single search hit.
type SearchResult struct {
	Record Record
	Score  float64
	// Method names the retrieval path: bm25, vector, bm25+vector, filter,
	// rerank or browse.
	Method        string
	Reranked      bool
	OriginalScore float64
}

// SearchResponse is one page of results.
type SearchResponse struct {
	Results    []SearchResult
	TotalCount int
	// Intent is the parsed intent: find_people, find_projects,
	// find_companies or general.
	Intent string
	// Fallback is set when results are a plain listing because record
	// hydration failed.
	Fallback bool
	Took     time.Duration
}

// IndexStats describes both indexes.
type IndexStats struct {
	Documents    int
	Terms        int
	AvgDocLength float64
	Built        bool
	BuiltAt      time.Time
	Embeddings   int
	Records      int
}

// ReindexStats summarizes a full re-embedding pass.
type ReindexStats struct {
	Records   int
	Embedded  int
	Unchanged int
	Failed    int
	Purged    int
}
