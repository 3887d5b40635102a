package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"questionbank/internal/domain"
)

// RoleRepository implements app.RoleRepository with bun.
type RoleRepository struct {
	db bun.IDB
}

func NewRoleRepository(db bun.IDB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) GetByID(ctx context.Context, id int) (*domain.Role, error) {
	role := new(domain.Role)
	return one(role, r.db.NewSelect().Model(role).Where("role_id = ?", id).Scan(ctx))
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	role := new(domain.Role)
	return one(role, r.db.NewSelect().Model(role).Where("role_name = ?", name).Limit(1).Scan(ctx))
}

func (r *RoleRepository) List(ctx context.Context) ([]domain.Role, error) {
	roles := []domain.Role{}
	err := r.db.NewSelect().Model(&roles).Order("role_id ASC").Scan(ctx)
	return roles, err
}

func (r *RoleRepository) Insert(ctx context.Context, role *domain.Role) error {
	if err := domain.Validate(role); err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(role).ExcludeColumn("role_id").Returning("role_id").Exec(ctx); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return checkInsertedID("roles", role.ID)
}

func (r *RoleRepository) Update(ctx context.Context, role *domain.Role) error {
	if role.ID <= 0 {
		return fmt.Errorf("update roles: %w", domain.ErrMissingID)
	}
	if err := domain.Validate(role); err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model(role).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return checkAffected("roles", role.ID, res)
}

func (r *RoleRepository) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("delete from roles: %w", domain.ErrMissingID)
	}
	_, err := r.db.NewDelete().Model((*domain.Role)(nil)).Where("role_id = ?", id).Exec(ctx)
	return err
}

// CategoryRepository implements app.CategoryRepository with bun.
type CategoryRepository struct {
	db bun.IDB
}

func NewCategoryRepository(db bun.IDB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int) (*domain.QuestionCategory, error) {
	c := new(domain.QuestionCategory)
	return one(c, r.db.NewSelect().Model(c).Where("category_id = ?", id).Scan(ctx))
}

func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*domain.QuestionCategory, error) {
	c := new(domain.QuestionCategory)
	return one(c, r.db.NewSelect().Model(c).Where("category_name = ?", name).Limit(1).Scan(ctx))
}

func (r *CategoryRepository) List(ctx context.Context) ([]domain.QuestionCategory, error) {
	out := []domain.QuestionCategory{}
	err := r.db.NewSelect().Model(&out).Order("category_id ASC").Scan(ctx)
	return out, err
}

func (r *CategoryRepository) Insert(ctx context.Context, c *domain.QuestionCategory) error {
	if err := domain.Validate(c); err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(c).ExcludeColumn("category_id").Returning("category_id").Exec(ctx); err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return checkInsertedID("question_categories", c.ID)
}

func (r *CategoryRepository) Update(ctx context.Context, c *domain.QuestionCategory) error {
	if c.ID <= 0 {
		return fmt.Errorf("update question_categories: %w", domain.ErrMissingID)
	}
	if err := domain.Validate(c); err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model(c).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return checkAffected("question_categories", c.ID, res)
}

func (r *CategoryRepository) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("delete from question_categories: %w", domain.ErrMissingID)
	}
	_, err := r.db.NewDelete().Model((*domain.QuestionCategory)(nil)).Where("category_id = ?", id).Exec(ctx)
	return err
}

// DifficultyRepository implements app.DifficultyRepository with bun.
type DifficultyRepository struct {
	db bun.IDB
}

func NewDifficultyRepository(db bun.IDB) *DifficultyRepository {
	return &DifficultyRepository{db: db}
}

func (r *DifficultyRepository) GetByID(ctx context.Context, id int) (*domain.QuestionDifficulty, error) {
	d := new(domain.QuestionDifficulty)
	return one(d, r.db.NewSelect().Model(d).Where("difficulty_id = ?", id).Scan(ctx))
}

func (r *DifficultyRepository) List(ctx context.Context) ([]domain.QuestionDifficulty, error) {
	out := []domain.QuestionDifficulty{}
	err := r.db.NewSelect().Model(&out).Order("difficulty_id ASC").Scan(ctx)
	return out, err
}

func (r *DifficultyRepository) Insert(ctx context.Context, d *domain.QuestionDifficulty) error {
	if err := domain.Validate(d); err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(d).ExcludeColumn("difficulty_id").Returning("difficulty_id").Exec(ctx); err != nil {
		return fmt.Errorf("insert difficulty: %w", err)
	}
	return checkInsertedID("question_difficulties", d.ID)
}

func (r *DifficultyRepository) Update(ctx context.Context, d *domain.QuestionDifficulty) error {
	if d.ID <= 0 {
		return fmt.Errorf("update question_difficulties: %w", domain.ErrMissingID)
	}
	if err := domain.Validate(d); err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model(d).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update difficulty: %w", err)
	}
	return checkAffected("question_difficulties", d.ID, res)
}

func (r *DifficultyRepository) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("delete from question_difficulties: %w", domain.ErrMissingID)
	}
	_, err := r.db.NewDelete().Model((*domain.QuestionDifficulty)(nil)).Where("difficulty_id = ?", id).Exec(ctx)
	return err
}
