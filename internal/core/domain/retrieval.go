package domain

import "math"

// Provenance tags how retrieval matches were produced.
type Provenance string

// Retrieval provenance values.
const (
	// ProvenanceRanked matches came from similarity ranking and carry scores.
	ProvenanceRanked Provenance = "ranked"

	// ProvenanceFallback matches are the most recent chunks in scope.
	// Their scores are not meaningful.
	ProvenanceFallback Provenance = "fallback"
)

// RetrievalQuery describes a similarity search.
type RetrievalQuery struct {
	// Vector is the query embedding. Empty forces the fallback path.
	Vector []float32

	// OwnerID restricts matches to one user's documents.
	OwnerID string

	// DocumentID optionally restricts matches to one document.
	DocumentID string

	// Threshold is the minimum similarity on the ranked path.
	Threshold float64

	// Limit is the maximum number of matches.
	Limit int
}

// ChunkMatch is a chunk returned by retrieval.
type ChunkMatch struct {
	Chunk        Chunk
	DocumentName string
	Score        float64
}

// RetrievalResult is the outcome of a search.
type RetrievalResult struct {
	Matches    []ChunkMatch
	Provenance Provenance
}

// ChunkClaim describes a batch of pending chunks a worker wants to own.
type ChunkClaim struct {
	OwnerID    string
	DocumentID string // optional
	Limit      int
	Worker     string
	LeaseUntil int64 // unix nanoseconds
	Now        int64 // unix nanoseconds
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched or zero-length vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
