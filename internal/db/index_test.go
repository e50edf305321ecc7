package db

import (
	"slices"
	"strings"
	"testing"
)

func TestIndexBuilder_Args(t *testing.T) {
	def, err := NewIndex("dirdex:emb:idx").
		Prefix("dirdex:emb:").
		Tag("kind").
		Numeric("updated_at").
		Vector("vector", 4, VectorHNSW, DistanceCosine).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args, err := def.Args()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"dirdex:emb:idx", "ON", "HASH", "PREFIX", "1", "dirdex:emb:", "SCHEMA",
		"kind", "TAG",
		"updated_at", "NUMERIC",
		"vector", "VECTOR", "HNSW", "6", "TYPE", "FLOAT32", "DIM", "4", "DISTANCE_METRIC", "COSINE",
	}
	if !slices.Equal(args, want) {
		t.Errorf("args mismatch:\n got %v\nwant %v", args, want)
	}
	if !strings.HasPrefix(def.String(), "FT.CREATE dirdex:emb:idx ON HASH") {
		t.Errorf("String() = %q", def.String())
	}
}

func TestIndexBuilder_HNSWTuning(t *testing.T) {
	def := &IndexDefinition{
		Name: "idx",
		Fields: []IndexField{{
			Name: "v", Type: IndexFieldVector, VectorDim: 8,
			VectorM: 16, VectorEFConstruct: 200,
		}},
	}
	args, err := def.Args()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "VECTOR HNSW 10") || !strings.Contains(joined, "M 16 EF_CONSTRUCTION 200") {
		t.Errorf("unexpected args %q", joined)
	}
}

func TestIndexDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		def  IndexDefinition
	}{
		{"empty name", IndexDefinition{Fields: []IndexField{{Name: "a"}}}},
		{"bad name", IndexDefinition{Name: "a b", Fields: []IndexField{{Name: "a"}}}},
		{"no fields", IndexDefinition{Name: "idx"}},
		{"empty field", IndexDefinition{Name: "idx", Fields: []IndexField{{}}}},
		{"duplicate", IndexDefinition{Name: "idx", Fields: []IndexField{{Name: "a"}, {Name: "a"}}}},
		{"vector without dim", IndexDefinition{Name: "idx", Fields: []IndexField{{Name: "v", Type: IndexFieldVector}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.def.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	for _, s := range []string{"idx", "dirdex:emb:idx", "a-b_c"} {
		if !IsValidIdentifier(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "a b", "a*"} {
		if IsValidIdentifier(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}
