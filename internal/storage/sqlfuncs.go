package storage

import (
	"github.com/dshills/eventsage/internal/textmatch"
	"github.com/dshills/eventsage/internal/vector"
)

// SQL functions registered on every connection, whichever driver is built
const (
	funcTrigramSimilarity = "trigram_similarity"
	funcVecDistanceCosine = "vec_distance_cosine"
)

// maxCosineDistance is returned when two vectors cannot be compared
const maxCosineDistance = 2.0

// trigramSimilarity backs trigram_similarity(text, text). NULL scores 0.
func trigramSimilarity(a, b interface{}) float64 {
	return textmatch.Similarity(sqlText(a), sqlText(b))
}

// vecDistanceCosine backs vec_distance_cosine(blob, blob)
func vecDistanceCosine(a, b interface{}) float64 {
	va, ok := sqlBlob(a)
	if !ok {
		return maxCosineDistance
	}
	vb, ok := sqlBlob(b)
	if !ok {
		return maxCosineDistance
	}
	return vector.CosineDistance(vector.Decode(va), vector.Decode(vb))
}

func sqlText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

func sqlBlob(v interface{}) ([]byte, bool) {
	switch t := v.(type) {
	case []byte:
		return t, len(t) > 0
	case string:
		return []byte(t), len(t) > 0
	default:
		return nil, false
	}
}
