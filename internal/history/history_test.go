package history

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/guessfleet/internal/game"
	"github.com/nerrad567/guessfleet/internal/infrastructure/config"
	"github.com/nerrad567/guessfleet/internal/infrastructure/database"
	"github.com/nerrad567/guessfleet/migrations"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	return NewSQLiteRepository(db.DB)
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	finished := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	res := &Result{
		DeviceID:     "aa:bb",
		DisplayName:  "Desk",
		Reason:       string(game.ReasonMaxRounds),
		FinalHP:      3,
		RoundsPlayed: 10,
		Correct:      8,
		Incorrect:    2,
		LastSequence: 12,
		FinishedAt:   finished,
	}
	if err := repo.Create(ctx, res); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	got, err := repo.Get(ctx, res.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
	}
	got.FinishedAt = res.FinishedAt
	if *got != *res {
		t.Errorf("Get() = %+v, want %+v", *got, *res)
	}
}

func TestRepository_CreateAssignsFullUUID(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		res := &Result{DeviceID: "aa:bb", Reason: string(game.ReasonMaxRounds), FinishedAt: time.Now()}
		if err := repo.Create(ctx, res); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		id := strings.TrimPrefix(res.ID, "game-")
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("ID %q does not carry a full UUID: %v", res.ID, err)
		}
		if seen[res.ID] {
			t.Errorf("duplicate ID %q", res.ID)
		}
		seen[res.ID] = true
	}
}

func TestRepository_GetNotFound(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.Get(context.Background(), "game-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRepository_List(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	for i, dev := range []string{"a", "b", "a", "a", "b"} {
		if err := repo.Create(ctx, &Result{
			DeviceID:   dev,
			Reason:     string(game.ReasonHPDepleted),
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
		wantLimit int
	}{
		{name: "all", filter: Filter{}, wantTotal: 5, wantLen: 5, wantLimit: defaultLimit},
		{name: "by device", filter: Filter{DeviceID: "a"}, wantTotal: 3, wantLen: 3, wantLimit: defaultLimit},
		{name: "paged", filter: Filter{Limit: 2, Offset: 1}, wantTotal: 5, wantLen: 2, wantLimit: 2},
		{name: "clamped limit", filter: Filter{Limit: 1000}, wantTotal: 5, wantLen: 5, wantLimit: maxLimit},
		{name: "negative offset", filter: Filter{Offset: -3}, wantTotal: 5, wantLen: 5, wantLimit: defaultLimit},
		{name: "unknown device", filter: Filter{DeviceID: "zz"}, wantTotal: 0, wantLen: 0, wantLimit: defaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", got.Total, tt.wantTotal)
			}
			if len(got.Results) != tt.wantLen {
				t.Errorf("len(Results) = %d, want %d", len(got.Results), tt.wantLen)
			}
			if got.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", got.Limit, tt.wantLimit)
			}
			if got.Results == nil {
				t.Error("Results should be an empty slice, not nil")
			}
		})
	}

	page, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for i := 1; i < len(page.Results); i++ {
		if page.Results[i].FinishedAt.After(page.Results[i-1].FinishedAt) {
			t.Fatal("results not ordered most recent first")
		}
	}
}

// memRepo is an in-memory Repository for recorder tests.
type memRepo struct {
	mu      sync.Mutex
	results []Result
	block   chan struct{}
	err     error
}

func (m *memRepo) Create(_ context.Context, r *Result) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, *r)
	return m.err
}

func (m *memRepo) Get(context.Context, string) (*Result, error) { return nil, ErrNotFound }

func (m *memRepo) List(context.Context, Filter) (*ListResult, error) {
	return &ListResult{}, nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

func finishedEvent(deviceID string) game.Event {
	return game.Event{
		Type:     game.EventGameFinished,
		DeviceID: deviceID,
		Reason:   game.ReasonHPDepleted,
		Session: game.Snapshot{
			DeviceID:     deviceID,
			DisplayName:  "Lamp",
			HealthPoints: 0,
			Correct:      4,
			Incorrect:    5,
			Sequence:     9,
		},
		Time: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
	}
}

func TestRecorder_RecordsFinishedGamesOnly(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, 8, nil)

	rec.Notify(game.Event{Type: game.EventGuessScored, DeviceID: "x"})
	rec.Notify(game.Event{Type: game.EventGameOver, DeviceID: "x"})
	rec.Notify(finishedEvent("x"))
	rec.Close()

	if repo.count() != 1 {
		t.Fatalf("recorded %d results, want 1", repo.count())
	}

	got := repo.results[0]
	if got.DeviceID != "x" || got.Reason != "hp_depleted" || got.RoundsPlayed != 9 ||
		got.Correct != 4 || got.Incorrect != 5 || got.LastSequence != 9 || got.DisplayName != "Lamp" {
		t.Errorf("recorded %+v", got)
	}
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	repo := &memRepo{block: make(chan struct{})}
	rec := NewRecorder(repo, 1, nil)

	// The worker takes the first and blocks; the second fills the queue.
	rec.Notify(finishedEvent("a"))
	deadline := time.Now().Add(time.Second)
	for len(rec.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	rec.Notify(finishedEvent("b"))
	rec.Notify(finishedEvent("c"))

	if got := rec.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}

	close(repo.block)
	rec.Close()

	if repo.count() != 2 {
		t.Errorf("recorded %d results, want 2", repo.count())
	}
}

func TestRecorder_NotifyAfterClose(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, 4, nil)
	rec.Close()
	rec.Close()

	rec.Notify(finishedEvent("late"))

	if repo.count() != 0 {
		t.Error("result recorded after Close")
	}
}

func TestRecorder_WritesThroughSQLite(t *testing.T) {
	repo := setupRepo(t)
	rec := NewRecorder(repo, 4, nil)

	rec.Notify(finishedEvent("aa:bb"))
	rec.Close()

	list, err := repo.List(context.Background(), Filter{DeviceID: "aa:bb"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("Total = %d, want 1", list.Total)
	}
	if list.Results[0].Reason != string(game.ReasonHPDepleted) {
		t.Errorf("Reason = %q", list.Results[0].Reason)
	}
}
