package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"questionbank/internal/domain"
)

// LookupLoader fetches lookup tables from the selected backend.
type LookupLoader interface {
	LoadCategories(ctx context.Context) ([]domain.QuestionCategory, error)
	LoadDifficulties(ctx context.Context) ([]domain.QuestionDifficulty, error)
	LoadUser(ctx context.Context, id int) (*domain.User, error)
}

const (
	categoriesKey   = "qb:lookup:categories"
	difficultiesKey = "qb:lookup:difficulties"
	usersKey        = "qb:lookup:users"

	// absentUser marks a user id that resolved to no row.
	absentUser = "null"
)

// creatorEntry is the part of a user that hydration needs. Credentials never
// reach the shared cache.
type creatorEntry struct {
	ID       int    `json:"user_id"`
	Username string `json:"username"`
	RealName string `json:"real_name"`
	RoleID   int    `json:"role_id"`
	Status   int    `json:"status"`
}

func toCreatorEntry(u *domain.User) creatorEntry {
	return creatorEntry{ID: u.ID, Username: u.Username, RealName: u.RealName, RoleID: u.RoleID, Status: u.Status}
}

func (e creatorEntry) user() *domain.User {
	return &domain.User{ID: e.ID, Username: e.Username, RealName: e.RealName, RoleID: e.RoleID, Status: e.Status}
}

// CachedLookupLoader shares lookup snapshots between processes through Redis
// and falls back to the wrapped loader on a miss. Redis errors are logged and
// treated as misses.
//
// Categories and difficulties are stored as JSON arrays, users as a hash:
// HSET qb:lookup:users {userID} {json}
type CachedLookupLoader struct {
	client *redis.Client
	loader LookupLoader
	ttl    time.Duration
	sf     singleflight.Group
	log    zerolog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCachedLookupLoader(client *redis.Client, loader LookupLoader, ttl time.Duration, log zerolog.Logger) *CachedLookupLoader {
	return &CachedLookupLoader{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (l *CachedLookupLoader) LoadCategories(ctx context.Context) ([]domain.QuestionCategory, error) {
	return loadSnapshot(ctx, l, categoriesKey, l.loader.LoadCategories)
}

func (l *CachedLookupLoader) LoadDifficulties(ctx context.Context) ([]domain.QuestionDifficulty, error) {
	return loadSnapshot(ctx, l, difficultiesKey, l.loader.LoadDifficulties)
}

func loadSnapshot[T any](ctx context.Context, l *CachedLookupLoader, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if rows, ok := getJSON[[]T](ctx, l, key); ok {
		return rows, nil
	}

	result, err, _ := l.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if rows, ok := getJSON[[]T](ctx, l, key); ok {
			return rows, nil
		}
		rows, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(rows); err == nil {
			if err := l.client.Set(ctx, key, data, l.ttlWithJitter()).Err(); err != nil {
				l.log.Warn().Err(err).Str("key", key).Msg("redis write failed")
			}
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]T), nil
}

func getJSON[T any](ctx context.Context, l *CachedLookupLoader, key string) (T, bool) {
	var out T
	data, err := l.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.log.Warn().Err(err).Str("key", key).Msg("redis read failed")
		}
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("discarding corrupt redis entry")
		return out, false
	}
	return out, true
}

func (l *CachedLookupLoader) LoadUser(ctx context.Context, id int) (*domain.User, error) {
	field := strconv.Itoa(id)
	if user, ok := l.cachedUser(ctx, field); ok {
		return user, nil
	}

	result, err, _ := l.sf.Do("user:"+field, func() (interface{}, error) {
		if user, ok := l.cachedUser(ctx, field); ok {
			return user, nil
		}
		user, err := l.loader.LoadUser(ctx, id)
		if err != nil {
			return (*domain.User)(nil), err
		}
		value := absentUser
		if user != nil {
			entry := toCreatorEntry(user)
			user = entry.user()
			data, err := json.Marshal(entry)
			if err != nil {
				return user, nil
			}
			value = string(data)
		}
		pipe := l.client.Pipeline()
		pipe.HSet(ctx, usersKey, field, value)
		if ttl := l.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, usersKey, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			l.log.Warn().Err(err).Int("user_id", id).Msg("redis write failed")
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.User), nil
}

func (l *CachedLookupLoader) cachedUser(ctx context.Context, field string) (*domain.User, bool) {
	raw, err := l.client.HGet(ctx, usersKey, field).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.log.Warn().Err(err).Str("user_id", field).Msg("redis read failed")
		}
		return nil, false
	}
	if raw == absentUser {
		return nil, true
	}
	var entry creatorEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false
	}
	return entry.user(), true
}

// Invalidate removes the shared snapshots. JoinCache.ClearAll calls it.
func (l *CachedLookupLoader) Invalidate(ctx context.Context) error {
	return l.client.Del(ctx, categoriesKey, difficultiesKey, usersKey).Err()
}

func (l *CachedLookupLoader) ttlWithJitter() time.Duration {
	if l.ttl <= 0 {
		return 0
	}
	l.rndMu.Lock()
	defer l.rndMu.Unlock()
	jitterMax := int64(l.ttl) / 10
	return l.ttl + time.Duration(l.rnd.Int63n(jitterMax+1))
}
