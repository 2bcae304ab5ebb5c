package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentStatus_IsValid(t *testing.T) {
	for _, s := range []DocumentStatus{DocumentNotStarted, DocumentProcessing, DocumentReady, DocumentError} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, DocumentStatus("done").IsValid())
	assert.Equal(t, "ready", DocumentReady.String())
}

func TestChunkStatus_IsResolved(t *testing.T) {
	assert.True(t, ChunkEmbedded.IsResolved())
	assert.True(t, ChunkSkipped.IsResolved())
	assert.False(t, ChunkPending.IsResolved())
	assert.False(t, ChunkFailed.IsResolved())
}

func TestChunk_WordCount(t *testing.T) {
	t.Run("from metadata", func(t *testing.T) {
		c := Chunk{Content: "one two", Metadata: map[string]any{MetaWordCount: 12}}
		assert.Equal(t, 12, c.WordCount())
	})

	t.Run("from json float", func(t *testing.T) {
		c := Chunk{Content: "one two", Metadata: map[string]any{MetaWordCount: float64(7)}}
		assert.Equal(t, 7, c.WordCount())
	})

	t.Run("computed", func(t *testing.T) {
		c := Chunk{Content: "  one two\nthree  "}
		assert.Equal(t, 3, c.WordCount())
	})
}

func TestMetaInt(t *testing.T) {
	m := map[string]any{"a": int64(3), "b": "x"}

	n, ok := MetaInt(m, "a")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = MetaInt(m, "b")
	assert.False(t, ok)

	_, ok = MetaInt(nil, "a")
	assert.False(t, ok)
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name    string
		current DocumentStatus
		counts  ChunkCounts
		want    DocumentStatus
	}{
		{"no chunks after ingest", DocumentProcessing, ChunkCounts{}, DocumentError},
		{"never ingested", DocumentNotStarted, ChunkCounts{}, DocumentNotStarted},
		{"all embedded", DocumentProcessing, ChunkCounts{Total: 3, Embedded: 3}, DocumentReady},
		{"embedded and skipped", DocumentProcessing, ChunkCounts{Total: 3, Embedded: 2, Skipped: 1}, DocumentReady},
		{"pending remain", DocumentProcessing, ChunkCounts{Total: 3, Embedded: 2, Pending: 1}, DocumentProcessing},
		{"failed remain", DocumentProcessing, ChunkCounts{Total: 3, Embedded: 2, Failed: 1}, DocumentProcessing},
		{"ready stays ready", DocumentReady, ChunkCounts{Total: 1, Embedded: 1}, DocumentReady},
		{"error recovers once chunks exist", DocumentError, ChunkCounts{Total: 2, Pending: 2}, DocumentProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.current, tt.counts))
		})
	}
}

func TestNewDocumentProgress(t *testing.T) {
	p := NewDocumentProgress("doc-1", DocumentProcessing, ChunkCounts{Total: 3, Embedded: 1, Skipped: 1, Failed: 1})

	assert.Equal(t, "doc-1", p.DocumentID)
	assert.Equal(t, 67, p.ProgressPercent)
	assert.Equal(t, 2, p.Counts.Resolved())

	empty := NewDocumentProgress("doc-2", DocumentError, ChunkCounts{})
	assert.Equal(t, 0, empty.ProgressPercent)
}
