package app

import (
	"context"

	"questionbank/internal/domain"
)

// Reads return (nil, nil) or an empty slice when nothing matches. Writes
// either succeed verifiably or return an error; Insert assigns the new id to
// the caller's entity.

// RoleRepository stores roles.
type RoleRepository interface {
	GetByID(ctx context.Context, id int) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
	Insert(ctx context.Context, r *domain.Role) error
	Update(ctx context.Context, r *domain.Role) error
	Delete(ctx context.Context, id int) error
}

// UserRepository stores users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// List returns users newest first with Role attached where it resolves.
	List(ctx context.Context) ([]domain.User, error)
	Insert(ctx context.Context, u *domain.User) error
	// Update replaces the whole row, filling blank required fields from the
	// persisted row first.
	Update(ctx context.Context, u *domain.User) error
	UpdateStatus(ctx context.Context, id, status int) error
	Delete(ctx context.Context, id int) error
}

// CategoryRepository stores question categories.
type CategoryRepository interface {
	GetByID(ctx context.Context, id int) (*domain.QuestionCategory, error)
	GetByName(ctx context.Context, name string) (*domain.QuestionCategory, error)
	List(ctx context.Context) ([]domain.QuestionCategory, error)
	Insert(ctx context.Context, c *domain.QuestionCategory) error
	Update(ctx context.Context, c *domain.QuestionCategory) error
	Delete(ctx context.Context, id int) error
}

// DifficultyRepository stores difficulty levels.
type DifficultyRepository interface {
	GetByID(ctx context.Context, id int) (*domain.QuestionDifficulty, error)
	List(ctx context.Context) ([]domain.QuestionDifficulty, error)
	Insert(ctx context.Context, d *domain.QuestionDifficulty) error
	Update(ctx context.Context, d *domain.QuestionDifficulty) error
	Delete(ctx context.Context, id int) error
}

// QuestionRepository stores questions. Returned questions carry Category,
// Difficulty and Creator when they could be resolved.
type QuestionRepository interface {
	GetByID(ctx context.Context, id int) (*domain.Question, error)
	ListByCreator(ctx context.Context, creatorID int) ([]domain.Question, error)
	List(ctx context.Context, offset, limit int) ([]domain.Question, error)
	Search(ctx context.Context, f domain.QuestionFilter, offset, limit int) ([]domain.Question, error)
	CountByCreator(ctx context.Context, creatorID int) (int, error)
	Insert(ctx context.Context, q *domain.Question) error
	Update(ctx context.Context, q *domain.Question) error
	Delete(ctx context.Context, id int) error
}

// CacheInvalidator is implemented by repositories holding lookup caches.
type CacheInvalidator interface {
	ClearCaches()
}
