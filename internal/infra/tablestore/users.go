package tablestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"questionbank/internal/domain"
)

// UserRepository implements app.UserRepository over the "users" resource.
type UserRepository struct {
	t     table[domain.User]
	roles *RoleRepository
	log   zerolog.Logger
}

// NewUserRepository builds the repository. roles may be nil, in which case
// List leaves Role unset.
func NewUserRepository(c *Client, roles *RoleRepository, log zerolog.Logger) *UserRepository {
	return &UserRepository{
		t:     newTable[domain.User](c, "users", "user_id", log),
		roles: roles,
		log:   log,
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*domain.User, error) {
	return r.t.byID(ctx, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.t.first(ctx, NewQuery().Select("*").Eq("username", username))
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	users, err := r.t.list(ctx, NewQuery().Select("*").Order("created_at", true))
	if err != nil {
		return nil, err
	}
	r.attachRoles(ctx, users)
	return users, nil
}

// attachRoles resolves every user's role from a single roles fetch.
func (r *UserRepository) attachRoles(ctx context.Context, users []domain.User) {
	if r.roles == nil || len(users) == 0 {
		return
	}
	roles, err := r.roles.List(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("roles unavailable; users listed without role")
		return
	}
	byID := make(map[int]*domain.Role, len(roles))
	for i := range roles {
		byID[roles[i].ID] = &roles[i]
	}
	for i := range users {
		users[i].Role = byID[users[i].RoleID]
	}
}

func (r *UserRepository) Insert(ctx context.Context, u *domain.User) error {
	if err := domain.Validate(u); err != nil {
		return err
	}
	id, err := r.t.insert(ctx, u, "created_at")
	if err != nil {
		return err
	}
	u.ID = id
	return nil
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
	return r.t.update(ctx, u.ID, u)
}

// UpdateStatus writes only the status column.
func (r *UserRepository) UpdateStatus(ctx context.Context, id, status int) error {
	if id <= 0 {
		return fmt.Errorf("update users: %w", domain.ErrMissingID)
	}
	if status != domain.UserDisabled && status != domain.UserActive {
		return fmt.Errorf("%w: user status must be 0 or 1, got %d", domain.ErrValidation, status)
	}
	payload, err := json.Marshal(map[string]int{"status": status})
	if err != nil {
		return err
	}
	return r.t.patch(ctx, id, payload)
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	return r.t.delete(ctx, id)
}
