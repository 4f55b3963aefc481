package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/eventsage/internal/embedder"
	"github.com/dshills/eventsage/internal/metrics"
	"github.com/dshills/eventsage/internal/storage"
	"github.com/dshills/eventsage/internal/textmatch"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// ErrIndexingInProgress is returned when an import or re-embed overlaps another
var ErrIndexingInProgress = errors.New("indexing operation already in progress")

// Indexer writes events together with their derived search text and embedding
type Indexer struct {
	storage  storage.Storage
	embedder embedder.Embedder

	// Worker pool configuration
	workers int

	lock     IndexLock
	log      logger.Logger
	onChange func()
}

// Config contains configuration for the indexer
type Config struct {
	Workers  int           // Concurrent embedding workers (default: runtime.NumCPU())
	Logger   logger.Logger // nil discards output
	OnChange func()        // Called after every committed write, e.g. to purge query caches
}

// Statistics contains statistics about a bulk operation
type Statistics struct {
	EventsIndexed int
	EventsSkipped int
	Duration      time.Duration
	ErrorMessages []string
}

// New creates a new Indexer instance
func New(store storage.Storage, emb embedder.Embedder, config *Config) *Indexer {
	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Indexer{
		storage:  store,
		embedder: emb,
		workers:  workers,
		log:      log.Named("indexer"),
		onChange: config.OnChange,
	}
}

// SearchText builds the collapsed text an event is lexically matched on
func SearchText(ev *types.Event) string {
	return textmatch.Normalize(EmbedText(ev))
}

// EmbedText builds the lowercased text an event is embedded on. Blank and
// N/A fields are skipped.
func EmbedText(ev *types.Event) string {
	fields := []string{
		ev.Name, ev.Domain, ev.Description, ev.Perks, ev.Collaboration,
		ev.FacultyCoordinators, ev.StudentCoordinators, ev.Speakers,
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if types.IsBlank(f) {
			continue
		}
		parts = append(parts, strings.TrimSpace(f))
	}
	return textmatch.Fold(strings.Join(parts, " "))
}

// AddInput converts and indexes one event from its wire form
func (idx *Indexer) AddInput(ctx context.Context, in EventInput) (*types.Event, error) {
	ev, err := in.ToEvent()
	if err != nil {
		return nil, err
	}
	if err := idx.AddEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// AddEvent validates, embeds and stores one event. The row and the index
// metadata are written in a single transaction; on any failure nothing is
// visible.
func (idx *Indexer) AddEvent(ctx context.Context, ev *types.Event) error {
	ev.ApplyDefaults()
	if err := ev.Validate(); err != nil {
		return err
	}

	ev.SearchText = SearchText(ev)
	vec, err := idx.embed(ctx, EmbedText(ev))
	if err != nil {
		return err
	}
	ev.Embedding = vec

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := idx.checkDimension(ctx, tx); err != nil {
		return err
	}
	if err := tx.InsertEvent(ctx, ev, idx.embedder.Model()); err != nil {
		return err
	}
	if err := idx.writeMeta(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.RecordEventsIndexed(metrics.SourceAdd, 1)
	idx.log.Info(ctx, "event indexed", logger.Int64("id", ev.ID), logger.String("name", ev.Name))
	idx.changed()
	return nil
}

// CheckDimension fails with types.ErrDimensionMismatch when the index holds
// vectors of a different size than the embedder produces. An empty index
// always passes.
func (idx *Indexer) CheckDimension(ctx context.Context) error {
	return idx.checkDimension(ctx, idx.storage)
}

func (idx *Indexer) checkDimension(ctx context.Context, store storage.Storage) error {
	raw, err := store.GetMeta(ctx, storage.MetaEmbeddingDim)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index dimension: %w", err)
	}
	stored, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid stored index dimension %q: %w", raw, err)
	}
	if want := idx.embedder.Dimension(); stored != want {
		return fmt.Errorf("%w: index holds %d-dimensional vectors but %s/%s produces %d; run reembed",
			types.ErrDimensionMismatch, stored, idx.embedder.Provider(), idx.embedder.Model(), want)
	}

	if model, err := store.GetMeta(ctx, storage.MetaEmbeddingModel); err == nil && model != idx.embedder.Model() {
		idx.log.Warn(ctx, "index was built with a different embedding model",
			logger.String("stored", model), logger.String("current", idx.embedder.Model()))
	}
	return nil
}

// ImportFile indexes every event in a YAML or JSON file
func (idx *Indexer) ImportFile(ctx context.Context, path string) (*Statistics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return idx.Import(ctx, f)
}

// Import indexes a batch of events. Invalid records are skipped and reported
// in the statistics. Embeddings are computed concurrently, then all rows are
// inserted in one transaction, so a failed embed or insert imports nothing.
func (idx *Indexer) Import(ctx context.Context, r io.Reader) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	inputs, err := ParseEvents(r)
	if err != nil {
		return nil, err
	}

	events := make([]*types.Event, 0, len(inputs))
	for i, in := range inputs {
		ev, err := in.ToEvent()
		if err != nil {
			stats.EventsSkipped++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("record %d (%s): %v", i+1, in.Name, err))
			continue
		}
		ev.SearchText = SearchText(ev)
		events = append(events, ev)
	}

	if len(events) == 0 {
		stats.Duration = time.Since(startTime)
		return stats, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for _, ev := range events {
		g.Go(func() error {
			vec, err := idx.embed(gctx, EmbedText(ev))
			if err != nil {
				return fmt.Errorf("failed to embed %q: %w", ev.Name, err)
			}
			ev.Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := idx.checkDimension(ctx, tx); err != nil {
		return nil, err
	}
	for _, ev := range events {
		if err := tx.InsertEvent(ctx, ev, idx.embedder.Model()); err != nil {
			return nil, fmt.Errorf("failed to insert %q: %w", ev.Name, err)
		}
	}
	if err := idx.writeMeta(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	stats.EventsIndexed = len(events)
	stats.Duration = time.Since(startTime)

	metrics.RecordEventsIndexed(metrics.SourceImport, stats.EventsIndexed)
	idx.log.Info(ctx, "import complete",
		logger.Int("indexed", stats.EventsIndexed),
		logger.Int("skipped", stats.EventsSkipped),
		logger.Duration("duration", stats.Duration))
	idx.changed()
	return stats, nil
}

// Reembed recomputes every stored embedding with the current embedder and
// rewrites them all in one transaction. Use it after switching models.
func (idx *Indexer) Reembed(ctx context.Context) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	events, err := idx.storage.ListEvents(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	pool, err := ants.NewPool(idx.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(events))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i, ev := range events {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			vec, err := idx.embed(ctx, EmbedText(ev))
			if err != nil {
				fail(fmt.Errorf("failed to embed event %d: %w", ev.ID, err))
				return
			}
			vectors[i] = vec
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit event %d: %w", ev.ID, err))
			break
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, ev := range events {
		if err := tx.UpdateEmbedding(ctx, ev.ID, vectors[i], idx.embedder.Model()); err != nil {
			return nil, fmt.Errorf("failed to update event %d: %w", ev.ID, err)
		}
	}
	if err := idx.writeMeta(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	stats.EventsIndexed = len(events)
	stats.Duration = time.Since(startTime)

	metrics.RecordEventsIndexed(metrics.SourceReembed, stats.EventsIndexed)
	idx.log.Info(ctx, "re-embed complete",
		logger.Int("events", stats.EventsIndexed),
		logger.String("model", idx.embedder.Model()),
		logger.Duration("duration", stats.Duration))
	idx.changed()
	return stats, nil
}

// embed returns the vector for text, checked against the embedder dimension
func (idx *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := embedder.Embed(ctx, idx.embedder, text)
	if err != nil {
		metrics.RecordEmbeddingFailure(metrics.StageIndex)
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if want := idx.embedder.Dimension(); want > 0 && len(vec) != want {
		return nil, fmt.Errorf("%w: embedder returned %d dimensions, want %d", types.ErrDimensionMismatch, len(vec), want)
	}
	return vec, nil
}

// writeMeta records the dimension and model of the vectors now in the index
func (idx *Indexer) writeMeta(ctx context.Context, tx storage.Tx) error {
	if err := tx.SetMeta(ctx, storage.MetaEmbeddingDim, strconv.Itoa(idx.embedder.Dimension())); err != nil {
		return err
	}
	return tx.SetMeta(ctx, storage.MetaEmbeddingModel, idx.embedder.Model())
}

func (idx *Indexer) changed() {
	if idx.onChange != nil {
		idx.onChange()
	}
}
