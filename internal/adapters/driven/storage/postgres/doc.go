// Package postgres implements the storage ports on PostgreSQL with the
// pgvector extension.
//
// Chunk embeddings live in a vector column and similarity is ranked by the
// database using the cosine distance operator (<=>). Worker claims use
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers, including workers
// in other processes, never receive the same chunk.
//
// The schema is applied with golang-migrate from migrations embedded in the
// binary.
package postgres
