// Package indexer is the write path for the event catalog.
//
// Every write derives two values from the event fields: the normalized
// search text used for trigram and substring matching, and the embedding of
// that text. Both are stored with the row so the read path never recomputes
// them.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb, &indexer.Config{
//	    Workers:  4,
//	    OnChange: router.Invalidate,
//	})
//
//	ev, err := idx.AddInput(ctx, indexer.EventInput{
//	    Name:        "AI Summit",
//	    Domain:      "AI",
//	    Date:        "2025-03-14",
//	    Description: "Talks on applied machine learning",
//	})
//
// # Operations
//
//   - AddEvent: one event, one transaction (row plus index metadata).
//   - Import: a YAML or JSON file of events. Embeddings are computed with a
//     bounded errgroup, then every row is inserted in one transaction.
//   - Reembed: recomputes all embeddings on an ants worker pool and rewrites
//     them in one transaction. Run it after changing the embedding model.
//
// Import and Reembed share an IndexLock; an overlapping call fails fast with
// ErrIndexingInProgress.
//
// # Dimension Guard
//
// The index records the embedding dimension and model in index_meta.
// CheckDimension, called at startup and inside every write transaction,
// rejects an embedder whose dimension differs from the stored vectors with
// types.ErrDimensionMismatch.
//
// # Import Format
//
// Either a bare list or a document with an events key:
//
//	events:
//	  - name: AI Summit
//	    domain: AI
//	    date: 2025-03-14
//	    registration_fee: 0
//	    description: Talks on applied machine learning
//
// Optional fields default to "N/A"; mode defaults to offline.
package indexer
