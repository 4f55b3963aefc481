package storage

import (
	"context"
	"time"

	"github.com/dshills/eventsage/pkg/types"
)

// Storage defines the interface for persisting and querying events
type Storage interface {
	// Event writes
	InsertEvent(ctx context.Context, event *types.Event, model string) error
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32, model string) error

	// Event reads
	GetEvent(ctx context.Context, id int64) (*types.Event, error)
	FindByNormalizedName(ctx context.Context, normalized string) (*types.Event, error)
	ListEvents(ctx context.Context, filter *EventFilter) ([]*types.Event, error)
	CountEvents(ctx context.Context, filter *EventFilter) (int, error)

	// Structured lookups
	SearchPeople(ctx context.Context, fragment string, limit int) ([]*types.Event, error)
	SearchMode(ctx context.Context, mode string, limit int) ([]*types.Event, error)
	SearchDomain(ctx context.Context, domain string, limit int) ([]*types.Event, error)

	// Similarity search
	SearchHybrid(ctx context.Context, req HybridQuery) ([]Candidate, error)
	SearchVector(ctx context.Context, vector []float32, limit int) ([]Candidate, error)

	// Index metadata
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Index metadata keys
const (
	MetaEmbeddingDim   = "embedding_dim"
	MetaEmbeddingModel = "embedding_model"
)

// EventFilter holds the hard constraints applied before any ranking. A nil
// filter, or a zero field, means no constraint on that column.
type EventFilter struct {
	Date       *types.DateFilter
	FeeCeiling *float64 // 0 = free only, otherwise fee <= ceiling
}

// IsEmpty reports whether the filter constrains nothing
func (f *EventFilter) IsEmpty() bool {
	return f == nil || (f.Date == nil && f.FeeCeiling == nil)
}

// HybridQuery asks the store for the union of lexical, substring and vector
// candidates under a filter.
type HybridQuery struct {
	Filter           *EventFilter
	Query            string    // normalized query text
	Vector           []float32 // nil = no vector term
	LexicalThreshold float64   // trigram similarity must exceed this
	VectorThreshold  float64   // cosine distance must be below this
}

// Candidate is an event returned by a similarity search with its raw signals
type Candidate struct {
	Event     *types.Event
	Lexical   float64  // trigram similarity in [0,1]
	Contained bool     // query is a substring of the search text
	Distance  *float64 // cosine distance in [0,2]; nil without a query vector
}

// Status summarizes the index
type Status struct {
	TotalEvents    int
	FreeEvents     int
	EmbeddingDim   int
	EmbeddingModel string
	SchemaVersion  string
	BuildMode      string
	FirstEventDate *time.Time
	LastEventDate  *time.Time
}
