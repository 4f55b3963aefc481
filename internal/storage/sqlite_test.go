package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/eventsage/internal/textmatch"
	"github.com/dshills/eventsage/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := types.ParseDate(s)
	require.NoError(t, err)
	return d
}

func newEvent(t *testing.T, name, domain, day string, fee float64, emb []float32) *types.Event {
	t.Helper()
	ev := &types.Event{
		Name:            name,
		Domain:          domain,
		Date:            date(t, day),
		Description:     name + " description",
		RegistrationFee: fee,
		Embedding:       emb,
	}
	ev.ApplyDefaults()
	ev.SearchText = textmatch.Normalize(name + " " + domain + " " + ev.Description)
	return ev
}

func insert(t *testing.T, s Storage, ev *types.Event) *types.Event {
	t.Helper()
	require.NoError(t, s.InsertEvent(context.Background(), ev, "test-model"))
	return ev
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)
	assert.NoError(t, storage.Ping(context.Background()))
}

func TestClose(t *testing.T) {
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	assert.NoError(t, storage.Close())
}

func TestInsertAndGetEvent(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	ev := newEvent(t, "AI Summit", "AI", "2025-03-14", 0, []float32{1, 0, 0, 0})
	ev.Speakers = "Dr. Rao"
	ev.Mode = types.ModeHybrid
	insert(t, storage, ev)
	assert.Greater(t, ev.ID, int64(0))
	assert.False(t, ev.CreatedAt.IsZero())

	got, err := storage.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "AI Summit", got.Name)
	assert.Equal(t, "2025-03-14", got.DateString())
	assert.Equal(t, types.ModeHybrid, got.Mode)
	assert.Equal(t, "Dr. Rao", got.Speakers)
	assert.Equal(t, types.NotAvailable, got.Venue)
	assert.Equal(t, ev.SearchText, got.SearchText)
	assert.Equal(t, []float32{1, 0, 0, 0}, got.Embedding)
	assert.True(t, got.IsFree())

	_, err = storage.GetEvent(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertEventRequiresEmbedding(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	ev := newEvent(t, "No Vector", "web", "2025-01-01", 0, nil)
	assert.ErrorIs(t, storage.InsertEvent(ctx, ev, "m"), ErrMissingEmbedding)

	ev.Embedding = []float32{0, 0, 0}
	assert.ErrorIs(t, storage.InsertEvent(ctx, ev, "m"), ErrMissingEmbedding)

	ev = newEvent(t, "No Text", "web", "2025-01-01", 0, []float32{1})
	ev.SearchText = " "
	assert.ErrorIs(t, storage.InsertEvent(ctx, ev, "m"), types.ErrInvalidEvent)

	n, err := storage.CountEvents(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInsertEventRejectsNegativeFee(t *testing.T) {
	storage := setupTestDB(t)
	ev := newEvent(t, "Paid", "web", "2025-01-01", -5, []float32{1})
	assert.Error(t, storage.InsertEvent(context.Background(), ev, "m"))
}

func TestFindByNormalizedName(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	first := insert(t, storage, newEvent(t, "Hackathon", "web", "2025-02-01", 0, []float32{1, 0}))
	insert(t, storage, newEvent(t, "HACKATHON", "web", "2025-03-01", 0, []float32{0, 1}))

	got, err := storage.FindByNormalizedName(ctx, textmatch.Normalize("  hackathon "))
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = storage.FindByNormalizedName(ctx, "hack")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = storage.FindByNormalizedName(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndCountEvents(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	insert(t, storage, newEvent(t, "Late", "ai", "2025-12-31", 100, []float32{1}))
	insert(t, storage, newEvent(t, "Early", "ai", "2024-06-01", 0, []float32{1}))
	insert(t, storage, newEvent(t, "Middle", "web", "2025-03-01", 0, []float32{1}))

	all, err := storage.ListEvents(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Early", "Middle", "Late"}, names(all))

	free := 0.0
	in2025 := &EventFilter{Date: types.YearRange(2025), FeeCeiling: &free}
	list, err := storage.ListEvents(ctx, in2025)
	require.NoError(t, err)
	assert.Equal(t, []string{"Middle"}, names(list))

	n, err := storage.CountEvents(ctx, &EventFilter{Date: types.YearRange(2025)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = storage.CountEvents(ctx, &EventFilter{Date: types.YearRange(2030)})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMonthRangeInclusive(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	insert(t, storage, newEvent(t, "Feb Last", "ai", "2024-02-29", 0, []float32{1}))
	insert(t, storage, newEvent(t, "Feb First", "ai", "2024-02-01", 0, []float32{1}))
	insert(t, storage, newEvent(t, "Jan Last", "ai", "2024-01-31", 0, []float32{1}))
	insert(t, storage, newEvent(t, "Mar First", "ai", "2024-03-01", 0, []float32{1}))

	list, err := storage.ListEvents(ctx, &EventFilter{Date: types.MonthRange(2024, 2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Feb First", "Feb Last"}, names(list))
}

func TestStructuredSearch(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	a := newEvent(t, "Robotics Expo", "Robotics", "2025-01-10", 0, []float32{1})
	a.FacultyCoordinators = "Prof. Meera Iyer"
	a.Mode = types.ModeOnline
	insert(t, storage, a)

	b := newEvent(t, "Cloud Day", "Cloud Computing", "2025-02-10", 0, []float32{1})
	b.Speakers = "Arjun Mehta, Meera K"
	insert(t, storage, b)

	c := newEvent(t, "Discount Day", "web", "2025-03-10", 0, []float32{1})
	c.Perks = "100% off"
	c.StudentCoordinators = "x_y"
	insert(t, storage, c)

	people, err := storage.SearchPeople(ctx, "meera", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Robotics Expo", "Cloud Day"}, names(people))

	people, err = storage.SearchPeople(ctx, "meera", 1)
	require.NoError(t, err)
	assert.Len(t, people, 1)

	people, err = storage.SearchPeople(ctx, "  ", 0)
	require.NoError(t, err)
	assert.Empty(t, people)

	// wildcards in the fragment are literal
	people, err = storage.SearchPeople(ctx, "_", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Discount Day"}, names(people))

	mode, err := storage.SearchMode(ctx, "online", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Robotics Expo"}, names(mode))

	domain, err := storage.SearchDomain(ctx, "cloud", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cloud Day"}, names(domain))
}

func TestUpdateEmbedding(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	ev := insert(t, storage, newEvent(t, "AI Summit", "ai", "2025-03-14", 0, []float32{1, 0}))
	require.NoError(t, storage.UpdateEmbedding(ctx, ev.ID, []float32{0, 1}, "m2"))

	got, err := storage.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, got.Embedding)

	assert.ErrorIs(t, storage.UpdateEmbedding(ctx, 999, []float32{1}, "m2"), ErrNotFound)
	assert.ErrorIs(t, storage.UpdateEmbedding(ctx, ev.ID, nil, "m2"), ErrMissingEmbedding)
}

func TestMeta(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.GetMeta(ctx, MetaEmbeddingDim)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, storage.SetMeta(ctx, MetaEmbeddingDim, "384"))
	require.NoError(t, storage.SetMeta(ctx, MetaEmbeddingDim, "768"))

	v, err := storage.GetMeta(ctx, MetaEmbeddingDim)
	require.NoError(t, err)
	assert.Equal(t, "768", v)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.TotalEvents)
	assert.Nil(t, status.FirstEventDate)
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
	assert.Equal(t, BuildMode, status.BuildMode)

	insert(t, storage, newEvent(t, "A", "ai", "2025-01-01", 0, []float32{1}))
	insert(t, storage, newEvent(t, "B", "ai", "2025-05-01", 250, []float32{1}))
	require.NoError(t, storage.SetMeta(ctx, MetaEmbeddingDim, "1"))
	require.NoError(t, storage.SetMeta(ctx, MetaEmbeddingModel, "test-model"))

	status, err = storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalEvents)
	assert.Equal(t, 1, status.FreeEvents)
	assert.Equal(t, 1, status.EmbeddingDim)
	assert.Equal(t, "test-model", status.EmbeddingModel)
	require.NotNil(t, status.FirstEventDate)
	require.NotNil(t, status.LastEventDate)
	assert.Equal(t, "2025-01-01", status.FirstEventDate.Format(types.DateLayout))
	assert.Equal(t, "2025-05-01", status.LastEventDate.Format(types.DateLayout))
}

func TestTransaction(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)

		ev := newEvent(t, "Committed", "ai", "2025-01-01", 0, []float32{1})
		require.NoError(t, tx.InsertEvent(ctx, ev, "m"))
		require.NoError(t, tx.SetMeta(ctx, MetaEmbeddingDim, "1"))

		// reads inside the transaction see its writes
		got, err := tx.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "Committed", got.Name)

		require.NoError(t, tx.Commit())

		_, err = storage.GetEvent(ctx, ev.ID)
		assert.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)

		ev := newEvent(t, "Rolled Back", "ai", "2025-01-01", 0, []float32{1})
		require.NoError(t, tx.InsertEvent(ctx, ev, "m"))
		require.NoError(t, tx.Rollback())

		_, err = storage.FindByNormalizedName(ctx, "rolled back")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nested", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		_, err = tx.BeginTx(ctx)
		assert.Error(t, err)
		assert.Error(t, tx.Close())
	})
}

func names(events []*types.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Name
	}
	return out
}
