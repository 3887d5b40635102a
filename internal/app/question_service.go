package app

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"questionbank/internal/domain"
)

// QuestionService holds the question use cases shared by the CLI and importers.
type QuestionService struct {
	questions QuestionRepository
	log       zerolog.Logger
}

func NewQuestionService(questions QuestionRepository, log zerolog.Logger) *QuestionService {
	return &QuestionService{questions: questions, log: log}
}

// ImportFailure records one row that could not be inserted.
type ImportFailure struct {
	Index int
	Err   error
}

// ImportReport summarises a bulk import.
type ImportReport struct {
	Inserted []int
	Failures []ImportFailure
}

// Import inserts every row, collecting per-row failures instead of aborting.
func (s *QuestionService) Import(ctx context.Context, rows []domain.Question) ImportReport {
	var report ImportReport
	for i := range rows {
		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures, ImportFailure{Index: i, Err: err})
			continue
		}
		if err := s.questions.Insert(ctx, &rows[i]); err != nil {
			s.log.Warn().Err(err).Int("row", i).Msg("import row failed")
			report.Failures = append(report.Failures, ImportFailure{Index: i, Err: err})
			continue
		}
		report.Inserted = append(report.Inserted, rows[i].ID)
	}
	s.log.Info().Int("inserted", len(report.Inserted)).Int("failed", len(report.Failures)).Msg("import finished")
	return report
}

// Browse returns one page of questions. last is a heuristic: a short page
// probably means there is nothing after it.
func (s *QuestionService) Browse(ctx context.Context, f domain.QuestionFilter, page, size int) (rows []domain.Question, last bool, err error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size
	if f == (domain.QuestionFilter{}) {
		rows, err = s.questions.List(ctx, offset, size)
	} else {
		rows, err = s.questions.Search(ctx, f, offset, size)
	}
	if err != nil {
		return nil, false, err
	}
	return rows, size <= 0 || len(rows) < size, nil
}

// Refresh drops cached lookups if the repository keeps any.
func (s *QuestionService) Refresh() bool {
	inv, ok := s.questions.(CacheInvalidator)
	if ok {
		inv.ClearCaches()
	}
	return ok
}

// CategoryLabel is the hydrated category name or the raw id.
func CategoryLabel(q domain.Question) string {
	if q.Category != nil && q.Category.Name != "" {
		return q.Category.Name
	}
	return "#" + strconv.Itoa(q.CategoryID)
}

// DifficultyLabel is the hydrated difficulty level or the raw id.
func DifficultyLabel(q domain.Question) string {
	if q.Difficulty != nil && q.Difficulty.Level != "" {
		return q.Difficulty.Level
	}
	return "#" + strconv.Itoa(q.DifficultyID)
}

// CreatorLabel prefers the creator's real name, then username, then the raw id.
func CreatorLabel(q domain.Question) string {
	if q.Creator != nil {
		if q.Creator.RealName != "" {
			return q.Creator.RealName
		}
		if q.Creator.Username != "" {
			return q.Creator.Username
		}
	}
	return "#" + strconv.Itoa(q.CreatorID)
}
