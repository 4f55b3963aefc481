package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/eventsage/internal/embedder"
	"github.com/dshills/eventsage/internal/storage"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension   int
	value       float32
	model       string
	generateErr error
	failOn      string // fail only for texts containing this
	callCount   atomic.Int32

	mu    sync.Mutex
	texts []string
}

func (m *mockEmbedder) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: 3, value: 0.5, model: "test-v1"}
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.texts = append(m.texts, req.Text)
	m.mu.Unlock()
	if m.generateErr != nil && (m.failOn == "" || strings.Contains(req.Text, m.failOn)) {
		return nil, m.generateErr
	}

	vector := make([]float32, m.dimension)
	for i := range vector {
		vector[i] = m.value
	}
	return &embedder.Embedding{
		Vector:    vector,
		Dimension: m.dimension,
		Provider:  "mock",
		Model:     m.model,
	}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: "mock", Model: m.model}, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return m.model }
func (m *mockEmbedder) Close() error     { return nil }

func setupTestStorage(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func summitInput() EventInput {
	return EventInput{
		Name:        "AI Summit",
		Domain:      "AI",
		Date:        "2025-03-14",
		Speakers:    "Dr. Meera Rao",
		Description: "Talks on applied machine learning",
	}
}

func TestSearchText(t *testing.T) {
	ev := &types.Event{
		Name:                "AI Summit",
		Domain:              "AI",
		Description:         "Talks   on ML",
		Perks:               "N/A",
		Collaboration:       "",
		FacultyCoordinators: "Prof. Iyer",
		StudentCoordinators: "n/a",
		Speakers:            "Dr. Rao",
	}
	assert.Equal(t, "ai sumit ai talks on ml prof. iyer dr. rao", SearchText(ev))
}

func TestEmbedText(t *testing.T) {
	ev := &types.Event{
		Name:        "Free  Coffee Meetup",
		Domain:      "N/A",
		Description: "At the Summit",
	}
	assert.Equal(t, "free coffee meetup at the summit", EmbedText(ev))
	assert.Equal(t, "fre cofe metup at the sumit", SearchText(ev))
}

func TestAddEvent_EmbedsUncollapsedText(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	idx := New(store, emb, nil)

	ev, err := idx.AddInput(ctx, summitInput())
	require.NoError(t, err)

	texts := emb.seen()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "ai summit")
	assert.Contains(t, texts[0], "applied machine learning")
	assert.Contains(t, ev.SearchText, "ai sumit")

	_, err = idx.Reembed(ctx)
	require.NoError(t, err)
	texts = emb.seen()
	require.Len(t, texts, 2)
	assert.Equal(t, texts[0], texts[1])
}

func TestEventInputToEvent(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		ev, err := summitInput().ToEvent()
		require.NoError(t, err)

		assert.Equal(t, "2025-03-14", ev.DateString())
		assert.Equal(t, types.ModeOffline, ev.Mode)
		assert.Equal(t, types.NotAvailable, ev.Venue)
		assert.Equal(t, types.NotAvailable, ev.Time)
		assert.Equal(t, "Dr. Meera Rao", ev.Speakers)
		assert.True(t, ev.IsFree())
	})

	t.Run("mode lowercased", func(t *testing.T) {
		in := summitInput()
		in.Mode = " Online "
		ev, err := in.ToEvent()
		require.NoError(t, err)
		assert.Equal(t, types.ModeOnline, ev.Mode)
	})

	tests := []struct {
		name   string
		modify func(*EventInput)
	}{
		{"missing date", func(in *EventInput) { in.Date = "" }},
		{"bad date", func(in *EventInput) { in.Date = "14/03/2025" }},
		{"missing name", func(in *EventInput) { in.Name = "  " }},
		{"missing description", func(in *EventInput) { in.Description = "" }},
		{"negative fee", func(in *EventInput) { in.RegistrationFee = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := summitInput()
			tt.modify(&in)
			_, err := in.ToEvent()
			assert.ErrorIs(t, err, types.ErrInvalidEvent)
		})
	}
}

func TestEventInputAliases(t *testing.T) {
	t.Run("json long names and string fee", func(t *testing.T) {
		var in EventInput
		require.NoError(t, json.Unmarshal([]byte(`{
			"name_of_event": "AI Summit",
			"event_domain": "AI",
			"date_of_event": "2025-03-14",
			"description_insights": "Talks on ML",
			"registration_fee": "150"
		}`), &in))
		assert.Equal(t, "AI Summit", in.Name)
		assert.Equal(t, "AI", in.Domain)
		assert.Equal(t, "2025-03-14", in.Date)
		assert.Equal(t, "Talks on ML", in.Description)
		assert.Equal(t, 150.0, in.RegistrationFee)
	})

	t.Run("short name wins", func(t *testing.T) {
		var in EventInput
		require.NoError(t, json.Unmarshal([]byte(`{"name": "Short", "name_of_event": "Long"}`), &in))
		assert.Equal(t, "Short", in.Name)
	})

	t.Run("fee forms", func(t *testing.T) {
		for body, want := range map[string]float64{
			`{"registration_fee": 99.5}`:   99.5,
			`{"registration_fee": " 20 "}`: 20,
			`{"registration_fee": "Free"}`: 0,
			`{"registration_fee": "N/A"}`:  0,
			`{"registration_fee": null}`:   0,
		} {
			var in EventInput
			require.NoError(t, json.Unmarshal([]byte(body), &in), body)
			assert.Equal(t, want, in.RegistrationFee, body)
		}
	})

	t.Run("bad fee", func(t *testing.T) {
		var in EventInput
		err := json.Unmarshal([]byte(`{"registration_fee": "lots"}`), &in)
		assert.ErrorIs(t, err, types.ErrInvalidEvent)
	})

	t.Run("unknown field", func(t *testing.T) {
		var in EventInput
		assert.Error(t, json.Unmarshal([]byte(`{"color": "blue"}`), &in))
	})

	t.Run("yaml long names", func(t *testing.T) {
		got, err := ParseEvents(strings.NewReader(`
- name_of_event: Hack Night
  event_domain: Web
  date_of_event: "2025-05-01"
  description_insights: All night build
  registration_fee: "250"
`))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Hack Night", got[0].Name)
		assert.Equal(t, "Web", got[0].Domain)
		assert.Equal(t, "2025-05-01", got[0].Date)
		assert.Equal(t, "All night build", got[0].Description)
		assert.Equal(t, 250.0, got[0].RegistrationFee)
	})
}

func TestAddEvent(t *testing.T) {
	store := setupTestStorage(t)
	emb := newMockEmbedder()

	var changes atomic.Int32
	idx := New(store, emb, &Config{Logger: logger.Nop(), OnChange: func() { changes.Add(1) }})

	ev, err := idx.AddInput(context.Background(), summitInput())
	require.NoError(t, err)
	require.NotZero(t, ev.ID)

	stored, err := store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Embedding, emb.Dimension())
	assert.Equal(t, "ai sumit ai talks on aplied machine learning dr. mera rao", stored.SearchText)
	assert.Equal(t, int32(1), changes.Load())

	dim, err := store.GetMeta(context.Background(), storage.MetaEmbeddingDim)
	require.NoError(t, err)
	assert.Equal(t, "3", dim)

	model, err := store.GetMeta(context.Background(), storage.MetaEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, "test-v1", model)
}

func TestAddEvent_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("embedding failure stores nothing", func(t *testing.T) {
		store := setupTestStorage(t)
		emb := newMockEmbedder()
		emb.generateErr = errors.New("model offline")

		idx := New(store, emb, nil)
		_, err := idx.AddInput(ctx, summitInput())
		require.Error(t, err)

		n, err := store.CountEvents(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("invalid event never reaches the embedder", func(t *testing.T) {
		store := setupTestStorage(t)
		emb := newMockEmbedder()
		idx := New(store, emb, nil)

		in := summitInput()
		in.Name = ""
		_, err := idx.AddInput(ctx, in)
		assert.ErrorIs(t, err, types.ErrInvalidEvent)
		assert.Zero(t, emb.callCount.Load())
	})

	t.Run("dimension mismatch rolls back", func(t *testing.T) {
		store := setupTestStorage(t)
		require.NoError(t, store.SetMeta(ctx, storage.MetaEmbeddingDim, "768"))

		idx := New(store, newMockEmbedder(), nil)
		_, err := idx.AddInput(ctx, summitInput())
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)

		n, err := store.CountEvents(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

// failingMetaStorage hands out transactions whose SetMeta fails, after the
// event row has already been inserted
type failingMetaStorage struct {
	storage.Storage
	inserted bool
}

func (s *failingMetaStorage) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.Storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &failingMetaTx{Tx: tx, owner: s}, nil
}

type failingMetaTx struct {
	storage.Tx
	owner *failingMetaStorage
}

func (tx *failingMetaTx) InsertEvent(ctx context.Context, ev *types.Event, model string) error {
	if err := tx.Tx.InsertEvent(ctx, ev, model); err != nil {
		return err
	}
	tx.owner.inserted = true
	return nil
}

func (tx *failingMetaTx) SetMeta(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestAddEvent_MetaFailureRollsBackInsert(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	wrapped := &failingMetaStorage{Storage: store}

	_, err := New(wrapped, newMockEmbedder(), nil).AddInput(ctx, summitInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, wrapped.inserted)

	n, err := store.CountEvents(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.GetMeta(ctx, storage.MetaEmbeddingDim)
	assert.Error(t, err)
}

func TestImport_MetaFailureRollsBackAll(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	wrapped := &failingMetaStorage{Storage: store}

	body := `[
  {"name": "A", "domain": "AI", "date": "2025-01-01", "description": "first"},
  {"name": "B", "domain": "Web", "date": "2025-02-01", "description": "second"}
]`
	_, err := New(wrapped, newMockEmbedder(), nil).Import(ctx, strings.NewReader(body))
	require.Error(t, err)
	assert.True(t, wrapped.inserted)

	n, err := store.CountEvents(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckDimension(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	idx := New(store, emb, nil)

	// empty index
	require.NoError(t, idx.CheckDimension(ctx))

	_, err := idx.AddInput(ctx, summitInput())
	require.NoError(t, err)
	require.NoError(t, idx.CheckDimension(ctx))

	bigger := newMockEmbedder()
	bigger.dimension = 4
	err = New(store, bigger, nil).CheckDimension(ctx)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "reembed")
}

func TestParseEvents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name: "yaml list",
			input: `
- name: AI Summit
  domain: AI
  date: "2025-03-14"
  description: Talks
- name: Robotics Workshop
  domain: Robotics
  date: "2025-04-02"
  description: Hands-on
`,
			want: []string{"AI Summit", "Robotics Workshop"},
		},
		{
			name: "yaml document",
			input: `
events:
  - name: Cloud Bootcamp
    domain: Cloud
    date: "2024-04-10"
    registration_fee: 300
    description: Three days of cloud
`,
			want: []string{"Cloud Bootcamp"},
		},
		{
			name:  "json list",
			input: `[{"name": "Blockchain Night", "domain": "Blockchain", "date": "2025-01-20", "description": "Demos"}]`,
			want:  []string{"Blockchain Night"},
		},
		{
			name:  "empty",
			input: "  \n",
		},
		{
			name:    "scalar",
			input:   "just a string",
			wantErr: true,
		},
		{
			name:    "malformed",
			input:   "- name: [unclosed",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvents(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			names := make([]string, 0, len(got))
			for _, in := range got {
				names = append(names, in.Name)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func TestParseEvents_Fields(t *testing.T) {
	got, err := ParseEvents(strings.NewReader(`
- name: Cloud Bootcamp
  domain: Cloud
  date: "2024-04-10"
  mode: hybrid
  registration_fee: 300
  faculty_coordinators: Prof. Iyer
  description: Three days of cloud
`))
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "hybrid", got[0].Mode)
	assert.Equal(t, 300.0, got[0].RegistrationFee)
	assert.Equal(t, "Prof. Iyer", got[0].FacultyCoordinators)
}

const importDoc = `
- name: AI Summit
  domain: AI
  date: "2025-03-14"
  description: Talks on applied machine learning
- name: Broken Event
  domain: AI
  date: "not a date"
  description: Never stored
- name: Robotics Workshop
  domain: Robotics
  date: "2025-04-02"
  mode: online
  description: Build a line follower
`

func TestImport(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	var changes atomic.Int32
	idx := New(store, newMockEmbedder(), &Config{Workers: 2, OnChange: func() { changes.Add(1) }})

	stats, err := idx.Import(ctx, strings.NewReader(importDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EventsIndexed)
	assert.Equal(t, 1, stats.EventsSkipped)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "Broken Event")
	assert.Equal(t, int32(1), changes.Load())

	events, err := store.ListEvents(ctx, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "AI Summit", events[0].Name)
	assert.Equal(t, types.ModeOnline, events[1].Mode)
	for _, ev := range events {
		assert.Len(t, ev.Embedding, 3)
		assert.NotEmpty(t, ev.SearchText)
	}
}

func TestImport_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	emb := newMockEmbedder()
	emb.generateErr = errors.New("rate limited")
	emb.failOn = "robotics"

	idx := New(store, emb, &Config{Workers: 1})
	_, err := idx.Import(ctx, strings.NewReader(importDoc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Robotics Workshop")

	n, err := store.CountEvents(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n, "a failed import must not leave partial rows")
}

func TestImport_Empty(t *testing.T) {
	idx := New(setupTestStorage(t), newMockEmbedder(), nil)
	stats, err := idx.Import(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, stats.EventsIndexed)
}

func TestImportFile_Missing(t *testing.T) {
	idx := New(setupTestStorage(t), newMockEmbedder(), nil)
	_, err := idx.ImportFile(context.Background(), "/nonexistent/events.yaml")
	assert.Error(t, err)
}

func TestBulkOperations_InProgress(t *testing.T) {
	idx := New(setupTestStorage(t), newMockEmbedder(), nil)
	require.True(t, idx.lock.TryAcquire())
	defer idx.lock.Release()

	_, err := idx.Import(context.Background(), strings.NewReader(importDoc))
	assert.ErrorIs(t, err, ErrIndexingInProgress)

	_, err = idx.Reembed(context.Background())
	assert.ErrorIs(t, err, ErrIndexingInProgress)
}

func TestReembed(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	first := New(store, newMockEmbedder(), nil)
	_, err := first.Import(ctx, strings.NewReader(importDoc))
	require.NoError(t, err)

	// switch to a model with a different dimension
	next := newMockEmbedder()
	next.dimension = 4
	next.value = 0.25
	next.model = "test-v2"
	idx := New(store, next, &Config{Workers: 3})
	require.ErrorIs(t, idx.CheckDimension(ctx), types.ErrDimensionMismatch)

	stats, err := idx.Reembed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EventsIndexed)
	assert.Equal(t, int32(2), next.callCount.Load())

	events, err := store.ListEvents(ctx, nil)
	require.NoError(t, err)
	for _, ev := range events {
		assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, ev.Embedding)
	}

	require.NoError(t, idx.CheckDimension(ctx))
	model, err := store.GetMeta(ctx, storage.MetaEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, "test-v2", model)
}

func TestReembed_FailureKeepsOldVectors(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	_, err := New(store, newMockEmbedder(), nil).Import(ctx, strings.NewReader(importDoc))
	require.NoError(t, err)

	broken := newMockEmbedder()
	broken.value = 0.9
	broken.generateErr = errors.New("model offline")
	broken.failOn = "robotics"

	_, err = New(store, broken, &Config{Workers: 2}).Reembed(ctx)
	require.Error(t, err)

	events, err := store.ListEvents(ctx, nil)
	require.NoError(t, err)
	for _, ev := range events {
		assert.Equal(t, []float32{0.5, 0.5, 0.5}, ev.Embedding)
	}
}

func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	t.Run("second acquire fails while held", func(t *testing.T) {
		var lock IndexLock
		require.True(t, lock.TryAcquire())
		assert.False(t, lock.TryAcquire())
		lock.Release()
		assert.True(t, lock.TryAcquire())
		lock.Release()
	})

	t.Run("only one goroutine wins", func(t *testing.T) {
		var lock IndexLock
		const numGoroutines = 100

		var (
			wg  sync.WaitGroup
			won atomic.Int32
		)
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func() {
				defer wg.Done()
				if lock.TryAcquire() {
					won.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), won.Load())
	})
}

func TestNew_Defaults(t *testing.T) {
	idx := New(setupTestStorage(t), newMockEmbedder(), &Config{Workers: -1})
	assert.Positive(t, idx.workers)
	assert.NotNil(t, idx.log)
}
