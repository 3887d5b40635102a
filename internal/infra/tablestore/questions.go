package tablestore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"questionbank/internal/domain"
)

// Hydrator attaches related entities to questions from cached lookups.
type Hydrator interface {
	HydrateBatch(ctx context.Context, qs []domain.Question)
	ClearAll()
}

// QuestionRepository implements app.QuestionRepository over "questions".
type QuestionRepository struct {
	t     table[domain.Question]
	joins Hydrator
	now   func() time.Time
}

// NewQuestionRepository builds the repository. joins may be nil, in which
// case questions are returned with only their foreign-key ids.
func NewQuestionRepository(c *Client, joins Hydrator, log zerolog.Logger) *QuestionRepository {
	return &QuestionRepository{
		t:     newTable[domain.Question](c, "questions", "question_id", log),
		joins: joins,
		now:   time.Now,
	}
}

func (r *QuestionRepository) GetByID(ctx context.Context, id int) (*domain.Question, error) {
	q, err := r.t.byID(ctx, id)
	if err != nil || q == nil {
		return nil, err
	}
	batch := []domain.Question{*q}
	r.hydrate(ctx, batch)
	return &batch[0], nil
}

func (r *QuestionRepository) ListByCreator(ctx context.Context, creatorID int) ([]domain.Question, error) {
	return r.fetch(ctx, NewQuery().Select("*").EqInt("creator_id", creatorID).Order("created_at", true))
}

func (r *QuestionRepository) List(ctx context.Context, offset, limit int) ([]domain.Question, error) {
	return r.fetch(ctx, NewQuery().Select("*").Order("created_at", true).Page(offset, limit))
}

func (r *QuestionRepository) Search(ctx context.Context, f domain.QuestionFilter, offset, limit int) ([]domain.Question, error) {
	return r.fetch(ctx, searchQuery(f).Order("created_at", true).Page(offset, limit))
}

// searchQuery adds exactly the filters that are set.
func searchQuery(f domain.QuestionFilter) *Query {
	q := NewQuery().Select("*")
	if f.Keyword != "" {
		q.Contains("question_content", f.Keyword)
	}
	if f.CategoryID != nil {
		q.EqInt("category_id", *f.CategoryID)
	}
	if f.DifficultyID != nil {
		q.EqInt("difficulty_id", *f.DifficultyID)
	}
	if f.Type != nil {
		q.Eq("question_type", *f.Type)
	}
	return q
}

func (r *QuestionRepository) CountByCreator(ctx context.Context, creatorID int) (int, error) {
	rows, err := r.t.list(ctx, NewQuery().Select("question_id").EqInt("creator_id", creatorID))
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *QuestionRepository) Insert(ctx context.Context, q *domain.Question) error {
	if err := domain.Validate(q); err != nil {
		return err
	}
	id, err := r.t.insert(ctx, q, "created_at", "updated_at")
	if err != nil {
		return err
	}
	q.ID = id
	return nil
}

func (r *QuestionRepository) Update(ctx context.Context, q *domain.Question) error {
	if q.ID <= 0 {
		return fmt.Errorf("update questions: %w", domain.ErrMissingID)
	}
	if err := domain.Validate(q); err != nil {
		return err
	}
	now := r.now().UTC()
	q.UpdatedAt = &now
	return r.t.update(ctx, q.ID, q)
}

func (r *QuestionRepository) Delete(ctx context.Context, id int) error {
	return r.t.delete(ctx, id)
}

// ClearCaches drops every cached lookup so the next read reloads them.
func (r *QuestionRepository) ClearCaches() {
	if r.joins != nil {
		r.joins.ClearAll()
	}
}

func (r *QuestionRepository) fetch(ctx context.Context, q *Query) ([]domain.Question, error) {
	rows, err := r.t.list(ctx, q)
	if err != nil {
		return nil, err
	}
	r.hydrate(ctx, rows)
	return rows, nil
}

func (r *QuestionRepository) hydrate(ctx context.Context, rows []domain.Question) {
	if r.joins == nil || len(rows) == 0 {
		return
	}
	r.joins.HydrateBatch(ctx, rows)
}
