package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"questionbank/internal/domain"
)

func TestEnsureLoadedFetchesOnce(t *testing.T) {
	loader := newCountingLoader()
	cache := NewJoinCache(loader, 0, zerolog.Nop())

	for i := 0; i < 5; i++ {
		if err := cache.EnsureLoaded(context.Background()); err != nil {
			t.Fatalf("ensure loaded: %v", err)
		}
	}
	if loader.categoryCalls != 1 || loader.difficultyCalls != 1 {
		t.Fatalf("expected one fetch per table, got %d/%d", loader.categoryCalls, loader.difficultyCalls)
	}

	cache.ClearAll()
	if err := cache.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("ensure loaded after clear: %v", err)
	}
	if loader.categoryCalls != 2 || loader.difficultyCalls != 2 {
		t.Fatalf("expected refetch after ClearAll, got %d/%d", loader.categoryCalls, loader.difficultyCalls)
	}
}

func TestHydrateBatchRoundTrips(t *testing.T) {
	loader := newCountingLoader()
	cache := NewJoinCache(loader, 0, zerolog.Nop())

	// 12 rows, 2 categories, 2 difficulties, 3 distinct creators (one unknown).
	var batch []domain.Question
	for i := 0; i < 12; i++ {
		batch = append(batch, domain.Question{
			ID:           i + 1,
			CategoryID:   1 + i%2,
			DifficultyID: 1 + i%2,
			CreatorID:    []int{10, 11, 99}[i%3],
		})
	}
	cache.HydrateBatch(context.Background(), batch)

	total := loader.categoryCalls + loader.difficultyCalls + len(loader.userCalls)
	if total != 1+1+3 {
		t.Fatalf("expected 5 backend calls, got %d (users %v)", total, loader.userCalls)
	}
	for id, n := range loader.userCalls {
		if n != 1 {
			t.Fatalf("user %d fetched %d times", id, n)
		}
	}

	first := batch[0]
	if first.Category == nil || first.Category.Name != "Math" {
		t.Fatalf("category not hydrated: %+v", first.Category)
	}
	if first.Difficulty == nil || first.Difficulty.Level != "Easy" {
		t.Fatalf("difficulty not hydrated: %+v", first.Difficulty)
	}
	if first.Creator == nil || first.Creator.Username != "alice" {
		t.Fatalf("creator not hydrated: %+v", first.Creator)
	}
	if batch[2].Creator != nil {
		t.Fatalf("unknown creator should stay nil")
	}

	// A second batch with the same ids costs nothing, including the unknown user.
	cache.HydrateBatch(context.Background(), batch[:3])
	if got := loader.categoryCalls + loader.difficultyCalls + len(loader.userCalls); got != total {
		t.Fatalf("expected cache hits only, calls went from %d to %d", total, got)
	}
	if loader.userCalls[99] != 1 {
		t.Fatalf("nil user result should be cached, fetched %d times", loader.userCalls[99])
	}
}

func TestHydrateBatchSurvivesLookupFailures(t *testing.T) {
	loader := newCountingLoader()
	loader.failCategories = true
	loader.failUsers = true
	cache := NewJoinCache(loader, 0, zerolog.Nop())

	batch := []domain.Question{{ID: 1, CategoryID: 1, DifficultyID: 1, CreatorID: 10}}
	cache.HydrateBatch(context.Background(), batch)

	if batch[0].Category != nil || batch[0].Creator != nil {
		t.Fatalf("failed relations should stay nil: %+v", batch[0])
	}
	if batch[0].CategoryID != 1 || batch[0].CreatorID != 10 {
		t.Fatalf("foreign keys must be untouched")
	}

	// Errors are not cached: the next call retries.
	loader.failCategories = false
	loader.failUsers = false
	cache.HydrateBatch(context.Background(), batch)
	if batch[0].Category == nil || batch[0].Creator == nil {
		t.Fatalf("expected hydration after recovery: %+v", batch[0])
	}
}

func TestJoinCacheTTLExpires(t *testing.T) {
	loader := newCountingLoader()
	cache := NewJoinCache(loader, time.Minute, zerolog.Nop())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	if err := cache.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("ensure loaded: %v", err)
	}
	now = now.Add(30 * time.Second)
	_ = cache.EnsureLoaded(context.Background())
	if loader.categoryCalls != 1 {
		t.Fatalf("expected cache hit before ttl, got %d calls", loader.categoryCalls)
	}

	now = now.Add(2 * time.Minute)
	_ = cache.EnsureLoaded(context.Background())
	if loader.categoryCalls != 2 {
		t.Fatalf("expected reload after ttl, got %d calls", loader.categoryCalls)
	}
}

func TestResolveUserConcurrentSingleFetch(t *testing.T) {
	loader := newCountingLoader()
	loader.userDelay = 20 * time.Millisecond
	cache := NewJoinCache(loader, 0, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.ResolveUser(context.Background(), 10); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := loader.userCount(10); n != 1 {
		t.Fatalf("expected one fetch for concurrent resolves, got %d", n)
	}
}

type invalidatingLoader struct {
	StaticLookupLoader
	invalidated int
	err         error
}

func (l *invalidatingLoader) Invalidate(context.Context) error {
	l.invalidated++
	return l.err
}

func TestClearAllInvalidatesSharedLoader(t *testing.T) {
	loader := &invalidatingLoader{StaticLookupLoader: StaticLookupLoader{
		Users: map[int]domain.User{5: {ID: 5, Username: "carol", Password: "$2a$10$hash"}},
	}}
	cache := NewJoinCache(loader, 0, zerolog.Nop())

	u, err := cache.ResolveUser(context.Background(), 5)
	if err != nil || u == nil {
		t.Fatalf("resolve: %+v %v", u, err)
	}
	if u.Password != "" {
		t.Fatalf("cached user keeps its password hash")
	}

	cache.ClearAll()
	loader.err = errors.New("redis down")
	cache.ClearAll()
	if loader.invalidated != 2 {
		t.Fatalf("expected shared layer cleared twice, got %d", loader.invalidated)
	}
}

type countingLoader struct {
	*StaticLookupLoader

	mu              sync.Mutex
	categoryCalls   int
	difficultyCalls int
	userCalls       map[int]int
	userDelay       time.Duration
	failCategories  bool
	failUsers       bool
}

func newCountingLoader() *countingLoader {
	return &countingLoader{
		StaticLookupLoader: &StaticLookupLoader{
			Categories:   []domain.QuestionCategory{{ID: 1, Name: "Math"}, {ID: 2, Name: "History"}},
			Difficulties: []domain.QuestionDifficulty{{ID: 1, Level: "Easy"}, {ID: 2, Level: "Hard"}},
			Users: map[int]domain.User{
				10: {ID: 10, Username: "alice"},
				11: {ID: 11, Username: "bob"},
			},
		},
		userCalls: make(map[int]int),
	}
}

func (l *countingLoader) LoadCategories(ctx context.Context) ([]domain.QuestionCategory, error) {
	l.mu.Lock()
	l.categoryCalls++
	fail := l.failCategories
	l.mu.Unlock()
	if fail {
		return nil, errors.New("categories down")
	}
	return l.StaticLookupLoader.LoadCategories(ctx)
}

func (l *countingLoader) LoadDifficulties(ctx context.Context) ([]domain.QuestionDifficulty, error) {
	l.mu.Lock()
	l.difficultyCalls++
	l.mu.Unlock()
	return l.StaticLookupLoader.LoadDifficulties(ctx)
}

func (l *countingLoader) LoadUser(ctx context.Context, id int) (*domain.User, error) {
	l.mu.Lock()
	l.userCalls[id]++
	fail := l.failUsers
	l.mu.Unlock()
	time.Sleep(l.userDelay)
	if fail {
		return nil, errors.New("users down")
	}
	return l.StaticLookupLoader.LoadUser(ctx, id)
}

func (l *countingLoader) userCount(id int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.userCalls[id]
}
