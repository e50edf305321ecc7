package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/search/query"
)

func chatServer(t *testing.T, replies ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %q", req.ResponseFormat.Type)
		}

		n := int(calls.Add(1)) - 1
		content := replies[len(replies)-1]
		if n < len(replies) {
			content = replies[n]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	return srv, &calls
}

func newTestParser(url string) *Parser {
	return NewParser(&ParserConfig{APIKey: "test-key", BaseURL: url, Model: "test-model", Logger: zap.NewNop()})
}

func TestParser_Generate(t *testing.T) {
	srv, _ := chatServer(t, `{
		"companies": [], "locations": ["Berlin"], "skills": ["AI"], "interests": ["music"],
		"availability": {"hire": true, "collab": null, "hiring": null},
		"strict_filters": {"locations": [], "skills": [], "companies": [], "availability": {}},
		"intent": "find_people", "freeform_query": "developers", "confidence": 0.9
	}`)
	defer srv.Close()

	got, err := newTestParser(srv.URL).Generate(context.Background(), "AI developers in Berlin who like music")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Intent != query.FindPeople {
		t.Errorf("intent = %q", got.Intent)
	}
	if len(got.Locations) != 1 || got.Locations[0] != "Berlin" {
		t.Errorf("locations = %v", got.Locations)
	}
	if got.Availability.Hire != query.True || got.Availability.Collab != query.Unset {
		t.Errorf("availability = %+v", got.Availability)
	}
	if got.OriginalQuery != "AI developers in Berlin who like music" {
		t.Errorf("original query not set: %q", got.OriginalQuery)
	}
}

func TestParser_RetriesMalformedJSON(t *testing.T) {
	srv, calls := chatServer(t,
		"not json at all",
		"```json\n{\"skills\": [\"go\"], \"intent\": \"general\", \"confidence\": 0.5}\n```",
	)
	defer srv.Close()

	got, err := newTestParser(srv.URL).Generate(context.Background(), "go people")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
	if len(got.Skills) != 1 || got.Skills[0] != "go" {
		t.Errorf("skills = %v", got.Skills)
	}
}

func TestParser_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, calls := chatServer(t, "{broken")
	defer srv.Close()

	_, err := newTestParser(srv.URL).Generate(context.Background(), "anything")
	if !errors.Is(err, domain.ErrQueryParserError) {
		t.Fatalf("expected ErrQueryParserError, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestParser_APIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	_, err := newTestParser(srv.URL).Generate(context.Background(), "anything")
	if !errors.Is(err, domain.ErrQueryParserError) {
		t.Fatalf("expected ErrQueryParserError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("API errors should not be retried, got %d calls", calls.Load())
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  \n{\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
