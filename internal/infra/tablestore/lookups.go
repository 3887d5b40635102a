package tablestore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"questionbank/internal/domain"
)

// RoleRepository implements app.RoleRepository over the "roles" resource.
type RoleRepository struct {
	t table[domain.Role]
}

func NewRoleRepository(c *Client, log zerolog.Logger) *RoleRepository {
	return &RoleRepository{t: newTable[domain.Role](c, "roles", "role_id", log)}
}

func (r *RoleRepository) GetByID(ctx context.Context, id int) (*domain.Role, error) {
	return r.t.byID(ctx, id)
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.t.first(ctx, NewQuery().Select("*").Eq("role_name", name))
}

func (r *RoleRepository) List(ctx context.Context) ([]domain.Role, error) {
	return r.t.list(ctx, NewQuery().Select("*").Order("role_id", false))
}

func (r *RoleRepository) Insert(ctx context.Context, role *domain.Role) error {
	if err := domain.Validate(role); err != nil {
		return err
	}
	id, err := r.t.insert(ctx, role)
	if err != nil {
		return err
	}
	role.ID = id
	return nil
}

func (r *RoleRepository) Update(ctx context.Context, role *domain.Role) error {
	if err := domain.Validate(role); err != nil {
		return err
	}
	return r.t.update(ctx, role.ID, role)
}

func (r *RoleRepository) Delete(ctx context.Context, id int) error {
	return r.t.delete(ctx, id)
}

// CategoryRepository implements app.CategoryRepository over "question_categories".
type CategoryRepository struct {
	t table[domain.QuestionCategory]
}

func NewCategoryRepository(c *Client, log zerolog.Logger) *CategoryRepository {
	return &CategoryRepository{t: newTable[domain.QuestionCategory](c, "question_categories", "category_id", log)}
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int) (*domain.QuestionCategory, error) {
	return r.t.byID(ctx, id)
}

func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*domain.QuestionCategory, error) {
	return r.t.first(ctx, NewQuery().Select("*").Eq("category_name", name))
}

func (r *CategoryRepository) List(ctx context.Context) ([]domain.QuestionCategory, error) {
	return r.t.list(ctx, NewQuery().Select("*").Order("category_id", false))
}

func (r *CategoryRepository) Insert(ctx context.Context, c *domain.QuestionCategory) error {
	if err := domain.Validate(c); err != nil {
		return err
	}
	id, err := r.t.insert(ctx, c)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *CategoryRepository) Update(ctx context.Context, c *domain.QuestionCategory) error {
	if err := domain.Validate(c); err != nil {
		return err
	}
	return r.t.update(ctx, c.ID, c)
}

func (r *CategoryRepository) Delete(ctx context.Context, id int) error {
	return r.t.delete(ctx, id)
}

// DifficultyRepository implements app.DifficultyRepository over "question_difficulties".
type DifficultyRepository struct {
	t table[domain.QuestionDifficulty]
}

func NewDifficultyRepository(c *Client, log zerolog.Logger) *DifficultyRepository {
	return &DifficultyRepository{t: newTable[domain.QuestionDifficulty](c, "question_difficulties", "difficulty_id", log)}
}

func (r *DifficultyRepository) GetByID(ctx context.Context, id int) (*domain.QuestionDifficulty, error) {
	return r.t.byID(ctx, id)
}

func (r *DifficultyRepository) List(ctx context.Context) ([]domain.QuestionDifficulty, error) {
	return r.t.list(ctx, NewQuery().Select("*").Order("difficulty_id", false))
}

func (r *DifficultyRepository) Insert(ctx context.Context, d *domain.QuestionDifficulty) error {
	if err := domain.Validate(d); err != nil {
		return err
	}
	id, err := r.t.insert(ctx, d)
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

func (r *DifficultyRepository) Update(ctx context.Context, d *domain.QuestionDifficulty) error {
	if err := domain.Validate(d); err != nil {
		return err
	}
	return r.t.update(ctx, d.ID, d)
}

func (r *DifficultyRepository) Delete(ctx context.Context, id int) error {
	return r.t.delete(ctx, id)
}

// LookupSource feeds a join cache from the table store.
type LookupSource struct {
	Categories   *CategoryRepository
	Difficulties *DifficultyRepository
	Users        *UserRepository
}

func (s LookupSource) LoadCategories(ctx context.Context) ([]domain.QuestionCategory, error) {
	if s.Categories == nil {
		return nil, fmt.Errorf("categories: %w", domain.ErrBackendUnavailable)
	}
	return s.Categories.List(ctx)
}

func (s LookupSource) LoadDifficulties(ctx context.Context) ([]domain.QuestionDifficulty, error) {
	if s.Difficulties == nil {
		return nil, fmt.Errorf("difficulties: %w", domain.ErrBackendUnavailable)
	}
	return s.Difficulties.List(ctx)
}

func (s LookupSource) LoadUser(ctx context.Context, id int) (*domain.User, error) {
	if s.Users == nil {
		return nil, fmt.Errorf("users: %w", domain.ErrBackendUnavailable)
	}
	return s.Users.GetByID(ctx, id)
}
