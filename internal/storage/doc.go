// Package storage provides SQLite-based persistence for the event catalog.
//
// The storage layer manages:
//   - Event rows with their derived search text and embedding
//   - Index metadata (embedding dimension and model)
//   - Schema versions
//
// # Database Schema
//
// Tables:
//   - events: one row per event; event_date is stored as YYYY-MM-DD text
//   - index_meta: key/value metadata about the stored vectors
//   - schema_version: applied migrations
//
// # SQL Functions
//
// Two scalar functions are registered on every connection:
//
//	trigram_similarity(text, text)    -- pg_trgm style similarity in [0,1]
//	vec_distance_cosine(blob, blob)   -- cosine distance in [0,2]
//
// Hybrid search uses both to return the union of lexical, substring and
// vector candidates under a date and fee filter:
//
//	cands, err := db.SearchHybrid(ctx, storage.HybridQuery{
//	    Filter:           &storage.EventFilter{Date: types.MonthRange(2025, 3)},
//	    Query:            "ai summit",
//	    Vector:           queryVec,
//	    LexicalThreshold: 0.3,
//	    VectorThreshold:  0.5,
//	})
//
// Scoring and ordering of candidates belong to the ranker.
//
// # Transactions
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.InsertEvent(ctx, ev, model); err != nil {
//	    return err
//	}
//	if err := tx.SetMeta(ctx, storage.MetaEmbeddingDim, "768"); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// The pool holds a single connection, so calls on the storage itself block
// while a transaction is open. Use the transaction for every call inside it.
//
// # Build Tags
//
// Pure Go build (default):
//
//	CGO_ENABLED=0 go build ./...
//
// CGO build with mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...
package storage
