package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"questionbank/internal/domain"
)

// UnknownRoleName labels a role that could not be loaded at login.
const UnknownRoleName = "unknown role"

// UserService covers user operations that span repositories.
type UserService struct {
	users     UserRepository
	roles     RoleRepository
	questions QuestionRepository
}

func NewUserService(users UserRepository, roles RoleRepository, questions QuestionRepository) *UserService {
	return &UserService{users: users, roles: roles, questions: questions}
}

// Login checks a username and plaintext password against the stored bcrypt
// hash. Disabled users are refused even with the right password. The Role is
// attached; when it cannot be loaded a placeholder named UnknownRoleName
// carries the role id.
func (s *UserService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("login %q: %w", username, err)
	}
	if u == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if u.Status == domain.UserDisabled {
		return nil, fmt.Errorf("login %q: %w", username, domain.ErrUserDisabled)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login %q: %w: %v", username, domain.ErrInvalidCredentials, err)
	}

	if u.Role == nil {
		u.Role = s.roleOrPlaceholder(ctx, u.RoleID)
	}
	return u, nil
}

func (s *UserService) roleOrPlaceholder(ctx context.Context, id int) *domain.Role {
	if s.roles != nil {
		if role, err := s.roles.GetByID(ctx, id); err == nil && role != nil {
			return role
		}
	}
	return &domain.Role{ID: id, Name: UnknownRoleName}
}

// HasQuestions reports whether the user authored any question.
func (s *UserService) HasQuestions(ctx context.Context, userID int) (bool, error) {
	n, err := s.questions.CountByCreator(ctx, userID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteQuestions removes every question the user authored and returns how
// many were deleted. It stops at the first failure; there is no rollback.
func (s *UserService) DeleteQuestions(ctx context.Context, userID int) (int, error) {
	qs, err := s.questions.ListByCreator(ctx, userID)
	if err != nil {
		return 0, err
	}
	for i, q := range qs {
		if err := s.questions.Delete(ctx, q.ID); err != nil {
			return i, fmt.Errorf("delete question %d: %w", q.ID, err)
		}
	}
	return len(qs), nil
}

// Delete removes a user. Without cascade a user who still owns questions is
// refused with ErrHasDependents.
func (s *UserService) Delete(ctx context.Context, userID int, cascade bool) error {
	has, err := s.HasQuestions(ctx, userID)
	if err != nil {
		return err
	}
	if has {
		if !cascade {
			return fmt.Errorf("user %d owns questions: %w", userID, domain.ErrHasDependents)
		}
		if _, err := s.DeleteQuestions(ctx, userID); err != nil {
			return err
		}
	}
	return s.users.Delete(ctx, userID)
}

// SetStatus enables or disables a user without touching other columns.
func (s *UserService) SetStatus(ctx context.Context, userID int, active bool) error {
	status := domain.UserDisabled
	if active {
		status = domain.UserActive
	}
	return s.users.UpdateStatus(ctx, userID, status)
}
