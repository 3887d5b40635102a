package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"questionbank/internal/domain"
)

// UserRepository implements app.UserRepository with bun.
type UserRepository struct {
	db bun.IDB
}

func NewUserRepository(db bun.IDB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*domain.User, error) {
	u := new(domain.User)
	return one(u, r.db.NewSelect().Model(u).Where("u.user_id = ?", id).Scan(ctx))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u := new(domain.User)
	return one(u, r.db.NewSelect().Model(u).Where("u.username = ?", username).Limit(1).Scan(ctx))
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	err := r.db.NewSelect().
		Model(&users).
		Relation("Role").
		Order("u.created_at DESC").
		Scan(ctx)
	return users, err
}

func (r *UserRepository) Insert(ctx context.Context, u *domain.User) error {
	if err := domain.Validate(u); err != nil {
		return err
	}
	_, err := r.db.NewInsert().
		Model(u).
		ExcludeColumn("user_id", "created_at").
		Returning("user_id, created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return checkInsertedID("users", u.ID)
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	if u.ID <= 0 {
		return fmt.Errorf("update users: %w", domain.ErrMissingID)
	}
	if u.NeedsRefetch() {
		existing, err := r.GetByID(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("re-fetch user %d: %w", u.ID, err)
		}
		if existing == nil {
			return fmt.Errorf("update user %d: %w", u.ID, domain.ErrNotFound)
		}
		u.FillBlanksFrom(existing)
	}
	if err := domain.Validate(u); err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model(u).WherePK().ExcludeColumn("created_at").Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return checkAffected("users", u.ID, res)
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id, status int) error {
	if id <= 0 {
		return fmt.Errorf("update users: %w", domain.ErrMissingID)
	}
	if status != domain.UserDisabled && status != domain.UserActive {
		return fmt.Errorf("%w: user status must be 0 or 1, got %d", domain.ErrValidation, status)
	}
	res, err := r.db.NewUpdate().
		Model((*domain.User)(nil)).
		Set("status = ?", status).
		Where("user_id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return checkAffected("users", id, res)
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("delete from users: %w", domain.ErrMissingID)
	}
	_, err := r.db.NewDelete().Model((*domain.User)(nil)).Where("user_id = ?", id).Exec(ctx)
	return err
}
