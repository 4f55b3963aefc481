// Package ranker implements hybrid retrieval over the event store.
//
// The store returns every event passing the hard filters (date range, fee
// ceiling) that is close on at least one signal: trigram similarity above
// the lexical threshold, the query as a substring of the search text, or
// cosine distance below the vector threshold. Each candidate is then scored
//
//	final = wv * clamp01(1 - distance) + wl * lexical
//
// and sorted by final score, newest event first on ties, then lowest ID.
//
// # Degradation
//
// If the query cannot be embedded the vector term is dropped and ranking is
// purely lexical. Nearest, the vector-only fallback, has no lexical signal
// and so returns the embedding error instead.
package ranker
