package app

import (
	"context"
	"fmt"

	"questionbank/internal/domain"
)

// CatalogService manages categories and difficulty levels, refusing to remove
// one that questions still use.
type CatalogService struct {
	categories   CategoryRepository
	difficulties DifficultyRepository
	questions    QuestionRepository
}

func NewCatalogService(categories CategoryRepository, difficulties DifficultyRepository, questions QuestionRepository) *CatalogService {
	return &CatalogService{categories: categories, difficulties: difficulties, questions: questions}
}

// DeleteCategory removes a category no question refers to.
func (s *CatalogService) DeleteCategory(ctx context.Context, id int) error {
	used, err := s.inUse(ctx, domain.QuestionFilter{CategoryID: domain.IntPtr(id)})
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("category %d has questions: %w", id, domain.ErrHasDependents)
	}
	return s.categories.Delete(ctx, id)
}

// DeleteDifficulty removes a difficulty level no question refers to.
func (s *CatalogService) DeleteDifficulty(ctx context.Context, id int) error {
	used, err := s.inUse(ctx, domain.QuestionFilter{DifficultyID: domain.IntPtr(id)})
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("difficulty %d has questions: %w", id, domain.ErrHasDependents)
	}
	return s.difficulties.Delete(ctx, id)
}

func (s *CatalogService) inUse(ctx context.Context, f domain.QuestionFilter) (bool, error) {
	rows, err := s.questions.Search(ctx, f, 0, 1)
	if err != nil {
		return false, fmt.Errorf("check dependents: %w", err)
	}
	return len(rows) > 0, nil
}
