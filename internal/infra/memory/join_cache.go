package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"questionbank/internal/domain"
	"questionbank/internal/metrics"
)

// LookupLoader fetches the lookup tables a question refers to.
type LookupLoader interface {
	LoadCategories(ctx context.Context) ([]domain.QuestionCategory, error)
	LoadDifficulties(ctx context.Context) ([]domain.QuestionDifficulty, error)
	LoadUser(ctx context.Context, id int) (*domain.User, error)
}

// SharedInvalidator is implemented by loaders that keep their own copy of the
// lookup tables, such as a Redis layer shared between processes.
type SharedInvalidator interface {
	Invalidate(ctx context.Context) error
}

// invalidateTimeout bounds the shared-layer clear issued by ClearAll.
const invalidateTimeout = 5 * time.Second

// JoinCache resolves question foreign keys without a query per row.
// Categories and difficulties are loaded as full snapshots; users are cached
// one id at a time, including ids that resolved to nothing. With ttl <= 0
// entries live until ClearAll.
type JoinCache struct {
	loader LookupLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	log    zerolog.Logger

	mu                 sync.RWMutex
	categories         map[int]domain.QuestionCategory
	categoriesExpire   time.Time
	categoriesLoaded   bool
	difficulties       map[int]domain.QuestionDifficulty
	difficultiesExpire time.Time
	difficultiesLoaded bool
	users              map[int]cachedUser
}

type cachedUser struct {
	user      *domain.User
	expiresAt time.Time
}

func NewJoinCache(loader LookupLoader, ttl time.Duration, log zerolog.Logger) *JoinCache {
	return &JoinCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    log,
		users:  make(map[int]cachedUser),
	}
}

// EnsureLoaded fills the category and difficulty snapshots if they are not
// already present. A table that fails to load is retried on the next call.
func (c *JoinCache) EnsureLoaded(ctx context.Context) error {
	now := c.clock()
	c.mu.RLock()
	ready := c.categoriesLoaded && fresh(c.categoriesExpire, now) &&
		c.difficultiesLoaded && fresh(c.difficultiesExpire, now)
	c.mu.RUnlock()
	if ready {
		metrics.LookupCacheTotal.WithLabelValues("categories", "hit").Inc()
		metrics.LookupCacheTotal.WithLabelValues("difficulties", "hit").Inc()
		return nil
	}

	_, err, _ := c.sf.Do("lookups", func() (interface{}, error) {
		if err := c.loadCategories(ctx); err != nil {
			return nil, err
		}
		return nil, c.loadDifficulties(ctx)
	})
	return err
}

func (c *JoinCache) loadCategories(ctx context.Context) error {
	now := c.clock()
	c.mu.RLock()
	ok := c.categoriesLoaded && fresh(c.categoriesExpire, now)
	c.mu.RUnlock()
	if ok {
		return nil
	}

	rows, err := c.loader.LoadCategories(ctx)
	if err != nil {
		metrics.LookupCacheTotal.WithLabelValues("categories", "error").Inc()
		return err
	}
	metrics.LookupCacheTotal.WithLabelValues("categories", "miss").Inc()
	byID := make(map[int]domain.QuestionCategory, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	c.mu.Lock()
	c.categories = byID
	c.categoriesLoaded = true
	c.categoriesExpire = c.expiry(now)
	c.mu.Unlock()
	return nil
}

func (c *JoinCache) loadDifficulties(ctx context.Context) error {
	now := c.clock()
	c.mu.RLock()
	ok := c.difficultiesLoaded && fresh(c.difficultiesExpire, now)
	c.mu.RUnlock()
	if ok {
		return nil
	}

	rows, err := c.loader.LoadDifficulties(ctx)
	if err != nil {
		metrics.LookupCacheTotal.WithLabelValues("difficulties", "error").Inc()
		return err
	}
	metrics.LookupCacheTotal.WithLabelValues("difficulties", "miss").Inc()
	byID := make(map[int]domain.QuestionDifficulty, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	c.mu.Lock()
	c.difficulties = byID
	c.difficultiesLoaded = true
	c.difficultiesExpire = c.expiry(now)
	c.mu.Unlock()
	return nil
}

// ResolveUser returns the cached user for id, fetching it at most once.
// A nil result is cached too; errors are not.
func (c *JoinCache) ResolveUser(ctx context.Context, id int) (*domain.User, error) {
	now := c.clock()
	c.mu.RLock()
	if entry, ok := c.users[id]; ok && fresh(entry.expiresAt, now) {
		c.mu.RUnlock()
		metrics.LookupCacheTotal.WithLabelValues("users", "hit").Inc()
		return entry.user, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("user:"+strconv.Itoa(id), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.users[id]; ok && fresh(entry.expiresAt, now) {
			c.mu.RUnlock()
			return entry.user, nil
		}
		c.mu.RUnlock()

		user, err := c.loader.LoadUser(ctx, id)
		if err != nil {
			metrics.LookupCacheTotal.WithLabelValues("users", "error").Inc()
			return nil, err
		}
		metrics.LookupCacheTotal.WithLabelValues("users", "miss").Inc()
		if user != nil {
			safe := user.WithoutPassword()
			user = &safe
		}

		c.mu.Lock()
		c.users[id] = cachedUser{user: user, expiresAt: c.expiry(now)}
		c.mu.Unlock()
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.User), nil
}

// HydrateBatch attaches Category, Difficulty and Creator to every row it can.
// Lookup failures are logged and leave the relation nil.
func (c *JoinCache) HydrateBatch(ctx context.Context, qs []domain.Question) {
	if len(qs) == 0 {
		return
	}
	if err := c.EnsureLoaded(ctx); err != nil {
		c.log.Warn().Err(err).Msg("lookup tables unavailable; categories and difficulties left unresolved")
	}

	creators := make(map[int]*domain.User)
	for _, q := range qs {
		if _, seen := creators[q.CreatorID]; seen || q.CreatorID <= 0 {
			continue
		}
		user, err := c.ResolveUser(ctx, q.CreatorID)
		if err != nil {
			c.log.Warn().Err(err).Int("user_id", q.CreatorID).Msg("creator lookup failed")
		}
		creators[q.CreatorID] = user
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range qs {
		q := &qs[i]
		if cat, ok := c.categories[q.CategoryID]; ok {
			q.Category = &cat
		}
		if diff, ok := c.difficulties[q.DifficultyID]; ok {
			q.Difficulty = &diff
		}
		if u := creators[q.CreatorID]; u != nil {
			creator := *u
			q.Creator = &creator
		}
	}
}

// ClearAll drops every snapshot and cached user, including the loader's
// shared copy when it has one, so the next load reaches the backend.
func (c *JoinCache) ClearAll() {
	if inv, ok := c.loader.(SharedInvalidator); ok {
		ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
		if err := inv.Invalidate(ctx); err != nil {
			c.log.Warn().Err(err).Msg("shared lookup cache not cleared")
		}
		cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = nil
	c.categoriesLoaded = false
	c.categoriesExpire = time.Time{}
	c.difficulties = nil
	c.difficultiesLoaded = false
	c.difficultiesExpire = time.Time{}
	c.users = make(map[int]cachedUser)
}

// expiry must be called with mu held for writing.
func (c *JoinCache) expiry(now time.Time) time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(c.ttlWithJitter())
}

func (c *JoinCache) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// fresh treats a zero expiry as never expiring.
func fresh(expiresAt, now time.Time) bool {
	return expiresAt.IsZero() || expiresAt.After(now)
}

// StaticLookupLoader serves lookups from fixed slices (useful for tests/demos).
type StaticLookupLoader struct {
	Categories   []domain.QuestionCategory
	Difficulties []domain.QuestionDifficulty
	Users        map[int]domain.User
}

func (l *StaticLookupLoader) LoadCategories(context.Context) ([]domain.QuestionCategory, error) {
	return l.Categories, nil
}

func (l *StaticLookupLoader) LoadDifficulties(context.Context) ([]domain.QuestionDifficulty, error) {
	return l.Difficulties, nil
}

func (l *StaticLookupLoader) LoadUser(_ context.Context, id int) (*domain.User, error) {
	if u, ok := l.Users[id]; ok {
		return &u, nil
	}
	return nil, nil
}
