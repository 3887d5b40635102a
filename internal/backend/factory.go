package backend

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"questionbank/internal/app"
	"questionbank/internal/domain"
	"questionbank/internal/infra/memory"
	"questionbank/internal/infra/postgres"
	qbredis "questionbank/internal/infra/redis"
	"questionbank/internal/infra/tablestore"
)

// Factory manufactures repositories for whichever mode the Selector holds.
// Either handle may be nil when that backend is not configured.
type Factory struct {
	Selector *Selector
	Store    *tablestore.Client
	DB       bun.IDB
	// Redis, when set, shares lookup snapshots between processes.
	Redis    *redis.Client
	RedisTTL time.Duration
	// CacheTTL bounds join-cache entries; zero means until cleared.
	CacheTTL time.Duration
	Log      zerolog.Logger
}

func (f *Factory) unavailable(what string) error {
	return fmt.Errorf("%s repository for %s backend: %w", what, f.Selector.Mode(), domain.ErrBackendUnavailable)
}

func (f *Factory) Roles() (app.RoleRepository, error) {
	switch f.Selector.Mode() {
	case ModeRemoteStore:
		if f.Store != nil {
			return tablestore.NewRoleRepository(f.Store, f.Log), nil
		}
	case ModeDirect:
		if f.DB != nil {
			return postgres.NewRoleRepository(f.DB), nil
		}
	}
	return nil, f.unavailable("role")
}

func (f *Factory) Users() (app.UserRepository, error) {
	switch f.Selector.Mode() {
	case ModeRemoteStore:
		if f.Store != nil {
			return tablestore.NewUserRepository(f.Store, tablestore.NewRoleRepository(f.Store, f.Log), f.Log), nil
		}
	case ModeDirect:
		if f.DB != nil {
			return postgres.NewUserRepository(f.DB), nil
		}
	}
	return nil, f.unavailable("user")
}

func (f *Factory) Categories() (app.CategoryRepository, error) {
	switch f.Selector.Mode() {
	case ModeRemoteStore:
		if f.Store != nil {
			return tablestore.NewCategoryRepository(f.Store, f.Log), nil
		}
	case ModeDirect:
		if f.DB != nil {
			return postgres.NewCategoryRepository(f.DB), nil
		}
	}
	return nil, f.unavailable("category")
}

func (f *Factory) Difficulties() (app.DifficultyRepository, error) {
	switch f.Selector.Mode() {
	case ModeRemoteStore:
		if f.Store != nil {
			return tablestore.NewDifficultyRepository(f.Store, f.Log), nil
		}
	case ModeDirect:
		if f.DB != nil {
			return postgres.NewDifficultyRepository(f.DB), nil
		}
	}
	return nil, f.unavailable("difficulty")
}

// Questions builds a question repository. On the table store every call gets
// its own join cache.
func (f *Factory) Questions() (app.QuestionRepository, error) {
	switch f.Selector.Mode() {
	case ModeRemoteStore:
		if f.Store != nil {
			return tablestore.NewQuestionRepository(f.Store, f.joinCache(), f.Log), nil
		}
	case ModeDirect:
		if f.DB != nil {
			return postgres.NewQuestionRepository(f.DB), nil
		}
	}
	return nil, f.unavailable("question")
}

func (f *Factory) joinCache() *memory.JoinCache {
	var loader memory.LookupLoader = tablestore.LookupSource{
		Categories:   tablestore.NewCategoryRepository(f.Store, f.Log),
		Difficulties: tablestore.NewDifficultyRepository(f.Store, f.Log),
		Users:        tablestore.NewUserRepository(f.Store, nil, f.Log),
	}
	if f.Redis != nil {
		loader = qbredis.NewCachedLookupLoader(f.Redis, loader, f.RedisTTL, f.Log)
	}
	return memory.NewJoinCache(loader, f.CacheTTL, f.Log)
}
