package keyword

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// BM25 parameters.
const (
	K1 = 1.2
	B  = 0.75
)

// Source is a document handed to the index: a stable id and its text.
type Source struct {
	ID      string
	Content string
}

// Document is the indexed form of a Source.
type Document struct {
	ID         string
	Content    string
	Tokens     []string
	TokenCount int
}

type entry struct {
	doc Document
	ord uint32
}

// Index is an in-memory BM25 inverted index.
//
// Posting lists are roaring bitmaps over internal ordinals, so document
// frequency is the bitmap cardinality. Term frequencies are kept per
// ordinal. All methods are safe for concurrent use: searches take a read
// lock, mutations take the write lock.
type Index struct {
	mu sync.RWMutex

	docs     map[string]*entry
	byOrd    map[uint32]string
	free     []uint32
	nextOrd  uint32
	postings map[string]*roaring.Bitmap
	tf       map[string]map[uint32]int

	totalTokens int
	avgDocLen   float64
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		docs:     make(map[string]*entry),
		byOrd:    make(map[uint32]string),
		postings: make(map[string]*roaring.Bitmap),
		tf:       make(map[string]map[uint32]int),
	}
}

// Build indexes docs into a fresh index. Later duplicates of an id replace
// earlier ones.
func Build(docs []Source) *Index {
	ix := NewIndex()
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, d := range docs {
		ix.addLocked(d)
	}
	return ix
}

// Add indexes doc. An existing document with the same id is removed first.
func (ix *Index) Add(doc Source) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.addLocked(doc)
}

// Remove drops the document with the given id and reports whether it was
// present.
func (ix *Index) Remove(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.removeLocked(id)
}

// Has reports whether id is indexed.
func (ix *Index) Has(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.docs[id]
	return ok
}

// Document returns the indexed document for id.
func (ix *Index) Document(id string) (Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.docs[id]
	if !ok {
		return Document{}, false
	}
	return e.doc, true
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

func (ix *Index) addLocked(src Source) {
	ix.removeLocked(src.ID)

	tokens := Tokenize(src.Content)
	ord := ix.allocOrd()
	ix.docs[src.ID] = &entry{
		doc: Document{
			ID:         src.ID,
			Content:    src.Content,
			Tokens:     tokens,
			TokenCount: len(tokens),
		},
		ord: ord,
	}
	ix.byOrd[ord] = src.ID

	for _, term := range tokens {
		bm, ok := ix.postings[term]
		if !ok {
			bm = roaring.New()
			ix.postings[term] = bm
		}
		bm.Add(ord)

		counts, ok := ix.tf[term]
		if !ok {
			counts = make(map[uint32]int)
			ix.tf[term] = counts
		}
		counts[ord]++
	}

	ix.totalTokens += len(tokens)
	ix.updateAvgDocLen()
}

func (ix *Index) removeLocked(id string) bool {
	e, ok := ix.docs[id]
	if !ok {
		return false
	}

	for _, term := range distinct(e.doc.Tokens) {
		if bm, ok := ix.postings[term]; ok {
			bm.Remove(e.ord)
			if bm.IsEmpty() {
				delete(ix.postings, term)
			}
		}
		if counts, ok := ix.tf[term]; ok {
			delete(counts, e.ord)
			if len(counts) == 0 {
				delete(ix.tf, term)
			}
		}
	}

	ix.totalTokens -= e.doc.TokenCount
	delete(ix.docs, id)
	delete(ix.byOrd, e.ord)
	ix.free = append(ix.free, e.ord)
	ix.updateAvgDocLen()
	return true
}

func (ix *Index) allocOrd() uint32 {
	if n := len(ix.free); n > 0 {
		ord := ix.free[n-1]
		ix.free = ix.free[:n-1]
		return ord
	}
	ord := ix.nextOrd
	ix.nextOrd++
	return ord
}

func (ix *Index) updateAvgDocLen() {
	if len(ix.docs) == 0 {
		ix.avgDocLen = 0
		return
	}
	ix.avgDocLen = float64(ix.totalTokens) / float64(len(ix.docs))
}

// Stats is a point-in-time summary of the index.
type Stats struct {
	DocumentCount int     `json:"document_count"`
	TotalTokens   int     `json:"total_tokens"`
	AvgDocLength  float64 `json:"avg_doc_length"`
	TermCount     int     `json:"term_count"`
}

// Stats returns the current index statistics.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		DocumentCount: len(ix.docs),
		TotalTokens:   ix.totalTokens,
		AvgDocLength:  ix.avgDocLen,
		TermCount:     len(ix.postings),
	}
}

// DocumentFrequency returns the number of documents containing term.
func (ix *Index) DocumentFrequency(term string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if bm, ok := ix.postings[term]; ok {
		return int(bm.GetCardinality())
	}
	return 0
}

// TermFrequency returns how often term occurs in document id.
func (ix *Index) TermFrequency(term, id string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.docs[id]
	if !ok {
		return 0
	}
	return ix.tf[term][e.ord]
}
