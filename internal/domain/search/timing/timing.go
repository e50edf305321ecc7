package timing

import (
	"encoding/json"
	"time"
)

// Timing holds per-stage durations of one search.
type Timing struct {
	Parse        time.Duration
	BM25         time.Duration
	Vector       time.Duration
	Filter       time.Duration
	Fusion       time.Duration
	Hydration    time.Duration
	Rerank       time.Duration
	StrictFilter time.Duration
	Total        time.Duration
}

// Milliseconds renders every stage in fractional milliseconds.
func (t Timing) Milliseconds() map[string]float64 {
	return map[string]float64{
		"parse":         ms(t.Parse),
		"bm25":          ms(t.BM25),
		"vector":        ms(t.Vector),
		"filter":        ms(t.Filter),
		"fusion":        ms(t.Fusion),
		"hydration":     ms(t.Hydration),
		"reranking":     ms(t.Rerank),
		"strict_filter": ms(t.StrictFilter),
		"total":         ms(t.Total),
	}
}

// MarshalJSON implements json.Marshaler.
func (t Timing) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Milliseconds())
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
