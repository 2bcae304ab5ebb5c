package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verity/internal/core/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFromDB(db), mock
}

func TestEncodeVectorLiteral(t *testing.T) {
	lit, err := encodeVectorLiteral([]float32{0.1, -2, 3.5})
	require.NoError(t, err)
	assert.Equal(t, "[0.1,-2,3.5]", lit)

	_, err = encodeVectorLiteral(nil)
	assert.Error(t, err)
}

func TestDecodeVectorLiteral(t *testing.T) {
	vec, err := decodeVectorLiteral("[0.1, -2,3.5]")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, -2, 3.5}, vec)

	empty, err := decodeVectorLiteral("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = decodeVectorLiteral("[a,b]")
	assert.Error(t, err)
}

func TestLimitArg(t *testing.T) {
	assert.Equal(t, sql.NullInt64{Int64: 5, Valid: true}, limitArg(5))
	assert.False(t, limitArg(0).Valid)
	assert.False(t, limitArg(-1).Valid)
}

func TestChunkStore_SaveEmbedding(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND ($3 = '' OR claimed_by = $3)`)).
		WithArgs("chunk-1", "[0.5,0.25]", "w1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.ChunkStore().SaveEmbedding(context.Background(), "chunk-1", "w1", []float32{0.5, 0.25})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStore_SaveEmbedding_NoRowUpdated(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		want   error
	}{
		{"chunk deleted", false, domain.ErrNotFound},
		{"claim taken by another worker", true, domain.ErrClaimLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE chunks SET`)).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
				WithArgs("chunk-1").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			err := store.ChunkStore().SaveEmbedding(context.Background(), "chunk-1", "w1", []float32{1})
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestChunkStore_MarkChunk_PatchesMetadata(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`metadata = metadata || $3::jsonb`)).
		WithArgs("chunk-1", "failed", []byte(`{"failure_reason":"timeout"}`), "w1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.ChunkStore().MarkChunk(context.Background(), "chunk-1", "w1", domain.ChunkFailed,
		map[string]any{domain.MetaFailureReason: "timeout"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStore_RenewClaims(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE chunks SET claimed_until = $2 WHERE claimed_by = $1`)).
		WithArgs("w1", int64(900)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, store.ChunkStore().RenewClaims(context.Background(), "w1", 900))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStore_ClaimPendingChunks(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "document_id", "content", "position", "embedding", "status", "metadata", "created_at"}).
		AddRow("c2", "doc-1", "second", 1, nil, "pending", []byte(`{}`), now).
		AddRow("c1", "doc-1", "first", 0, nil, "failed", []byte(`{"failure_reason":"x"}`), now)

	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE OF k SKIP LOCKED`)).
		WithArgs("alice", "", int64(100), sql.NullInt64{Int64: 2, Valid: true}, "w1", int64(200)).
		WillReturnRows(rows)

	claimed, err := store.ChunkStore().ClaimPendingChunks(context.Background(), domain.ChunkClaim{
		OwnerID: "alice", Limit: 2, Worker: "w1", LeaseUntil: 200, Now: 100,
	})
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "c1", claimed[0].ID)
	assert.Equal(t, domain.ChunkFailed, claimed[0].Status)
	assert.Equal(t, "x", claimed[0].Metadata[domain.MetaFailureReason])
	assert.Nil(t, claimed[0].Embedding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStore_CountChunks(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY status`)).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("embedded", 3).AddRow("skipped", 1).AddRow("pending", 2))

	counts, err := store.ChunkStore().CountChunks(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkCounts{Total: 6, Pending: 2, Embedded: 3, Skipped: 1}, counts)
}

func TestVectorSearcher_SimilaritySearch(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "document_id", "content", "position", "embedding", "status", "metadata", "created_at", "name", "score"}).
		AddRow("c1", "doc-1", "access control", 0, "[1,0]", "embedded", []byte(`{}`), now, "policy.md", 0.92)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY c.embedding <=> $1::vector`)).
		WithArgs("[1,0]", "alice", "doc-1", 0.3, sql.NullInt64{Int64: 5, Valid: true}).
		WillReturnRows(rows)

	matches, err := store.VectorSearcher().SimilaritySearch(context.Background(), domain.RetrievalQuery{
		Vector: []float32{1, 0}, OwnerID: "alice", DocumentID: "doc-1", Threshold: 0.3, Limit: 5,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "policy.md", matches[0].DocumentName)
	assert.InDelta(t, 0.92, matches[0].Score, 1e-9)
	assert.Equal(t, []float32{1, 0}, matches[0].Chunk.Embedding)
}

func TestVectorSearcher_SimilaritySearch_EmptyVector(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.VectorSearcher().SimilaritySearch(context.Background(), domain.RetrievalQuery{OwnerID: "alice"})
	assert.Error(t, err)
}

func TestDocumentStore_GetDocument_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM documents WHERE id = $1 AND owner_id = $2`)).
		WithArgs("doc-1", "bob").
		WillReturnError(sql.ErrNoRows)

	_, err := store.DocumentStore().GetDocument(context.Background(), "bob", "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskStore_DeleteTask_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM tasks`)).
		WithArgs("t1", "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.TaskStore().DeleteTask(context.Background(), "bob", "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSchedulerStore_GetJob_Missing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM jobs WHERE id = $1`)).
		WithArgs("ingest-pending").
		WillReturnError(sql.ErrNoRows)

	task, err := store.SchedulerStore().GetJob(context.Background(), "ingest-pending")
	require.NoError(t, err)
	assert.Nil(t, task)
}
