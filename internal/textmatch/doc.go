// Package textmatch implements the lexical side of retrieval: text
// normalization, substring containment and trigram similarity.
//
// The same Normalize must be applied to an event's search text at index time
// and to the query at search time, otherwise similarity scores between the
// two are not comparable. Similarity is also registered as the SQL function
// trigram_similarity by the storage package so candidate selection can run
// inside the database.
package textmatch
