package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"questionbank/internal/domain"
)

// QuestionRepository implements app.QuestionRepository with bun. Related rows
// are joined in the same query, so no lookup cache is needed here.
type QuestionRepository struct {
	db  bun.IDB
	now func() time.Time
}

func NewQuestionRepository(db bun.IDB) *QuestionRepository {
	return &QuestionRepository{db: db, now: time.Now}
}

func (r *QuestionRepository) selectHydrated(dest any) *bun.SelectQuery {
	return r.db.NewSelect().
		Model(dest).
		Relation("Category").
		Relation("Difficulty").
		Relation("Creator")
}

func (r *QuestionRepository) GetByID(ctx context.Context, id int) (*domain.Question, error) {
	q := new(domain.Question)
	return one(q, r.selectHydrated(q).Where("q.question_id = ?", id).Scan(ctx))
}

func (r *QuestionRepository) ListByCreator(ctx context.Context, creatorID int) ([]domain.Question, error) {
	out := []domain.Question{}
	err := r.selectHydrated(&out).
		Where("q.creator_id = ?", creatorID).
		Order("q.created_at DESC").
		Scan(ctx)
	return out, err
}

func (r *QuestionRepository) List(ctx context.Context, offset, limit int) ([]domain.Question, error) {
	out := []domain.Question{}
	err := page(r.selectHydrated(&out).Order("q.created_at DESC"), offset, limit).Scan(ctx)
	return out, err
}

func (r *QuestionRepository) Search(ctx context.Context, f domain.QuestionFilter, offset, limit int) ([]domain.Question, error) {
	out := []domain.Question{}
	sel := r.selectHydrated(&out)
	if f.Keyword != "" {
		sel = sel.Where("q.question_content ILIKE ?", "%"+f.Keyword+"%")
	}
	if f.CategoryID != nil {
		sel = sel.Where("q.category_id = ?", *f.CategoryID)
	}
	if f.DifficultyID != nil {
		sel = sel.Where("q.difficulty_id = ?", *f.DifficultyID)
	}
	if f.Type != nil {
		sel = sel.Where("q.question_type = ?", *f.Type)
	}
	err := page(sel.Order("q.created_at DESC"), offset, limit).Scan(ctx)
	return out, err
}

func (r *QuestionRepository) CountByCreator(ctx context.Context, creatorID int) (int, error) {
	return r.db.NewSelect().Model((*domain.Question)(nil)).Where("creator_id = ?", creatorID).Count(ctx)
}

func (r *QuestionRepository) Insert(ctx context.Context, q *domain.Question) error {
	if err := domain.Validate(q); err != nil {
		return err
	}
	_, err := r.db.NewInsert().
		Model(q).
		ExcludeColumn("question_id", "created_at", "updated_at").
		Returning("question_id, created_at, updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return checkInsertedID("questions", q.ID)
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
	res, err := r.db.NewUpdate().Model(q).WherePK().ExcludeColumn("created_at").Exec(ctx)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return checkAffected("questions", q.ID, res)
}

func (r *QuestionRepository) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("delete from questions: %w", domain.ErrMissingID)
	}
	_, err := r.db.NewDelete().Model((*domain.Question)(nil)).Where("question_id = ?", id).Exec(ctx)
	return err
}

func page(sel *bun.SelectQuery, offset, limit int) *bun.SelectQuery {
	if offset > 0 {
		sel = sel.Offset(offset)
	}
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	return sel
}
