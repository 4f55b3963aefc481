package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/eventsage/internal/textmatch"
	"github.com/dshills/eventsage/internal/vector"
	"github.com/dshills/eventsage/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = types.ErrNotFound
	// ErrMissingEmbedding is returned when an event is written without a vector
	ErrMissingEmbedding = errors.New("event has no embedding")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps ":memory:"
	// databases on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// eventColumns is the select list shared by every event query; scanEvent
// reads it in this order.
const eventColumns = `id, name, domain, event_date, event_time, venue, mode,
	faculty_coordinators, student_coordinators, speakers, registration_fee,
	perks, collaboration, description, search_text, embedding, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner, extra ...interface{}) (*types.Event, error) {
	var (
		ev   types.Event
		date string
		mode string
		blob []byte
	)
	dest := []interface{}{
		&ev.ID, &ev.Name, &ev.Domain, &date, &ev.Time, &ev.Venue, &mode,
		&ev.FacultyCoordinators, &ev.StudentCoordinators, &ev.Speakers, &ev.RegistrationFee,
		&ev.Perks, &ev.Collaboration, &ev.Description, &ev.SearchText, &blob,
		&ev.CreatedAt, &ev.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	d, err := time.Parse(types.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("event %d has invalid date %q: %w", ev.ID, date, err)
	}
	ev.Date = d
	ev.Mode = types.Mode(mode)
	ev.Embedding = vector.Decode(blob)
	return &ev, nil
}

func collectEvents(rows *sql.Rows) ([]*types.Event, error) {
	defer func() { _ = rows.Close() }()
	var events []*types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Event operations

// insertEventWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertEventWithQuerier(ctx context.Context, q querier, ev *types.Event, model string) error {
	if len(ev.Embedding) == 0 || vector.IsZero(ev.Embedding) {
		return ErrMissingEmbedding
	}
	if strings.TrimSpace(ev.SearchText) == "" {
		return fmt.Errorf("%w: empty search text", types.ErrInvalidEvent)
	}

	query := `
		INSERT INTO events (
			name, name_normalized, domain, event_date, event_time, venue, mode,
			faculty_coordinators, student_coordinators, speakers, registration_fee,
			perks, collaboration, description, search_text,
			embedding, embedding_dim, embedding_model, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		ev.Name, textmatch.Normalize(ev.Name), ev.Domain, ev.DateString(), ev.Time, ev.Venue, string(ev.Mode),
		ev.FacultyCoordinators, ev.StudentCoordinators, ev.Speakers, ev.RegistrationFee,
		ev.Perks, ev.Collaboration, ev.Description, ev.SearchText,
		vector.Encode(ev.Embedding), len(ev.Embedding), model, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = id
	ev.CreatedAt = now
	ev.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) InsertEvent(ctx context.Context, ev *types.Event, model string) error {
	return s.insertEventWithQuerier(ctx, s.querier(), ev, model)
}

// updateEmbeddingWithQuerier replaces the stored vector of one event
func (s *SQLiteStorage) updateEmbeddingWithQuerier(ctx context.Context, q querier, id int64, emb []float32, model string) error {
	if len(emb) == 0 || vector.IsZero(emb) {
		return ErrMissingEmbedding
	}
	result, err := q.ExecContext(ctx, `
		UPDATE events
		SET embedding = ?, embedding_dim = ?, embedding_model = ?, updated_at = ?
		WHERE id = ?
	`, vector.Encode(emb), len(emb), model, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) UpdateEmbedding(ctx context.Context, id int64, emb []float32, model string) error {
	return s.updateEmbeddingWithQuerier(ctx, s.querier(), id, emb, model)
}

func (s *SQLiteStorage) getEventWithQuerier(ctx context.Context, q querier, id int64) (*types.Event, error) {
	row := q.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

func (s *SQLiteStorage) GetEvent(ctx context.Context, id int64) (*types.Event, error) {
	return s.getEventWithQuerier(ctx, s.querier(), id)
}

// findByNormalizedNameWithQuerier returns the earliest inserted event whose
// normalized name equals normalized exactly
func (s *SQLiteStorage) findByNormalizedNameWithQuerier(ctx context.Context, q querier, normalized string) (*types.Event, error) {
	if normalized == "" {
		return nil, ErrNotFound
	}
	row := q.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE name_normalized = ? ORDER BY id LIMIT 1", normalized)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

func (s *SQLiteStorage) FindByNormalizedName(ctx context.Context, normalized string) (*types.Event, error) {
	return s.findByNormalizedNameWithQuerier(ctx, s.querier(), normalized)
}

func (s *SQLiteStorage) listEventsWithQuerier(ctx context.Context, q querier, filter *EventFilter) ([]*types.Event, error) {
	where, args := buildEventFilter(filter)
	rows, err := q.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events"+whereClause(where)+" ORDER BY event_date ASC, id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return collectEvents(rows)
}

// ListEvents returns every event matching filter ordered by date ascending
func (s *SQLiteStorage) ListEvents(ctx context.Context, filter *EventFilter) ([]*types.Event, error) {
	return s.listEventsWithQuerier(ctx, s.querier(), filter)
}

func (s *SQLiteStorage) countEventsWithQuerier(ctx context.Context, q querier, filter *EventFilter) (int, error) {
	where, args := buildEventFilter(filter)
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+whereClause(where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) CountEvents(ctx context.Context, filter *EventFilter) (int, error) {
	return s.countEventsWithQuerier(ctx, s.querier(), filter)
}

// Structured lookups

// searchLikeWithQuerier matches fragment as a case-insensitive substring of
// any of columns
func (s *SQLiteStorage) searchLikeWithQuerier(ctx context.Context, q querier, columns []string, fragment string, limit int) ([]*types.Event, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, nil
	}

	pattern := "%" + escapeLike(fragment) + "%"
	conds := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+1)
	for i, col := range columns {
		conds[i] = col + ` LIKE ? ESCAPE '\'`
		args = append(args, pattern)
	}
	args = append(args, sqlLimit(limit))

	rows, err := q.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE "+strings.Join(conds, " OR ")+
			" ORDER BY event_date ASC, id ASC LIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", strings.Join(columns, ","), err)
	}
	return collectEvents(rows)
}

var peopleColumns = []string{"faculty_coordinators", "student_coordinators", "speakers"}

func (s *SQLiteStorage) SearchPeople(ctx context.Context, fragment string, limit int) ([]*types.Event, error) {
	return s.searchLikeWithQuerier(ctx, s.querier(), peopleColumns, fragment, limit)
}

func (s *SQLiteStorage) SearchMode(ctx context.Context, mode string, limit int) ([]*types.Event, error) {
	return s.searchLikeWithQuerier(ctx, s.querier(), []string{"mode"}, mode, limit)
}

func (s *SQLiteStorage) SearchDomain(ctx context.Context, domain string, limit int) ([]*types.Event, error) {
	return s.searchLikeWithQuerier(ctx, s.querier(), []string{"domain"}, domain, limit)
}

// Similarity search

func (s *SQLiteStorage) SearchHybrid(ctx context.Context, req HybridQuery) ([]Candidate, error) {
	return searchHybrid(ctx, s.querier(), req)
}

func (s *SQLiteStorage) SearchVector(ctx context.Context, vec []float32, limit int) ([]Candidate, error) {
	return searchVector(ctx, s.querier(), vec, limit)
}

// Index metadata

func (s *SQLiteStorage) getMetaWithQuerier(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	return s.getMetaWithQuerier(ctx, s.querier(), key)
}

func (s *SQLiteStorage) setMetaWithQuerier(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO index_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set index meta %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	return s.setMetaWithQuerier(ctx, s.querier(), key, value)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{BuildMode: BuildMode}

	var first, last sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN registration_fee = 0 THEN 1 ELSE 0 END), 0),
		       MIN(event_date), MAX(event_date)
		FROM events
	`).Scan(&status.TotalEvents, &status.FreeEvents, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}
	if first.Valid {
		if d, err := time.Parse(types.DateLayout, first.String); err == nil {
			status.FirstEventDate = &d
		}
	}
	if last.Valid {
		if d, err := time.Parse(types.DateLayout, last.String); err == nil {
			status.LastEventDate = &d
		}
	}

	if v, err := s.getMetaWithQuerier(ctx, q, MetaEmbeddingDim); err == nil {
		status.EmbeddingDim, _ = strconv.Atoi(v)
	}
	if v, err := s.getMetaWithQuerier(ctx, q, MetaEmbeddingModel); err == nil {
		status.EmbeddingModel = v
	}

	status.SchemaVersion, err = SchemaVersion(ctx, q)
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// Transaction implementations. Every call goes through the transaction's
// querier so reads see the transaction's own writes.

func (t *sqliteTx) InsertEvent(ctx context.Context, ev *types.Event, model string) error {
	return t.storage.insertEventWithQuerier(ctx, t.querier(), ev, model)
}

func (t *sqliteTx) UpdateEmbedding(ctx context.Context, id int64, emb []float32, model string) error {
	return t.storage.updateEmbeddingWithQuerier(ctx, t.querier(), id, emb, model)
}

func (t *sqliteTx) GetEvent(ctx context.Context, id int64) (*types.Event, error) {
	return t.storage.getEventWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) FindByNormalizedName(ctx context.Context, normalized string) (*types.Event, error) {
	return t.storage.findByNormalizedNameWithQuerier(ctx, t.querier(), normalized)
}

func (t *sqliteTx) ListEvents(ctx context.Context, filter *EventFilter) ([]*types.Event, error) {
	return t.storage.listEventsWithQuerier(ctx, t.querier(), filter)
}

func (t *sqliteTx) CountEvents(ctx context.Context, filter *EventFilter) (int, error) {
	return t.storage.countEventsWithQuerier(ctx, t.querier(), filter)
}

func (t *sqliteTx) SearchPeople(ctx context.Context, fragment string, limit int) ([]*types.Event, error) {
	return t.storage.searchLikeWithQuerier(ctx, t.querier(), peopleColumns, fragment, limit)
}

func (t *sqliteTx) SearchMode(ctx context.Context, mode string, limit int) ([]*types.Event, error) {
	return t.storage.searchLikeWithQuerier(ctx, t.querier(), []string{"mode"}, mode, limit)
}

func (t *sqliteTx) SearchDomain(ctx context.Context, domain string, limit int) ([]*types.Event, error) {
	return t.storage.searchLikeWithQuerier(ctx, t.querier(), []string{"domain"}, domain, limit)
}

func (t *sqliteTx) SearchHybrid(ctx context.Context, req HybridQuery) ([]Candidate, error) {
	return searchHybrid(ctx, t.querier(), req)
}

func (t *sqliteTx) SearchVector(ctx context.Context, vec []float32, limit int) ([]Candidate, error) {
	return searchVector(ctx, t.querier(), vec, limit)
}

func (t *sqliteTx) GetMeta(ctx context.Context, key string) (string, error) {
	return t.storage.getMetaWithQuerier(ctx, t.querier(), key)
}

func (t *sqliteTx) SetMeta(ctx context.Context, key, value string) error {
	return t.storage.setMetaWithQuerier(ctx, t.querier(), key, value)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	return fmt.Errorf("cannot close storage from within a transaction")
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}
