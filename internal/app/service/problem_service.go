package service

import (
	"context"
	"database/sql"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
	"code_clash/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	db          *sql.DB // For transactions
}

func NewProblemService(problemRepo repository.ProblemRepository, db *sql.DB) *ProblemService {
	return &ProblemService{problemRepo: problemRepo, db: db}
}

type CreateProblemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	Examples    []struct {
		Input          string  `json:"input"`
		ExpectedOutput *string `json:"expected_output,omitempty"`
		Explanation    *string `json:"explanation,omitempty"`
	} `json:"examples,omitempty"`
}

func (s *ProblemService) CreateProblem(ctx context.Context, creatorID string, req CreateProblemRequest) (*model.Problem, error) {
	if req.Title == "" || req.Description == "" {
		return nil, common.Errorf("title and description are required: %w", common.ErrValidation)
	}
	difficulty := model.ProblemDifficulty(req.Difficulty)
	if !difficulty.Valid() {
		return nil, common.Errorf("unknown difficulty %q: %w", req.Difficulty, common.ErrValidation)
	}

	problem := &model.Problem{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Slug:        slug.Make(req.Title),
		Description: req.Description,
		Difficulty:  difficulty,
		CreatedByID: &creatorID,
	}

	examples := make([]model.Example, 0, len(req.Examples))
	for _, ex := range req.Examples {
		examples = append(examples, model.Example{
			ID:             uuid.NewString(),
			ProblemID:      problem.ID,
			Input:          ex.Input,
			ExpectedOutput: ex.ExpectedOutput,
			Explanation:    ex.Explanation,
		})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.CreateProblem(ctx, tx, problem); err != nil {
		return nil, err
	}
	if err := s.problemRepo.AddExamplesToProblem(ctx, tx, problem.ID, examples); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	problem.Examples = examples
	return problem, nil
}

func (s *ProblemService) GetProblemBySlug(ctx context.Context, problemSlug string) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, problemSlug)
	if err != nil {
		return nil, err
	}
	examples, err := s.problemRepo.GetExamplesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, common.Errorf("failed to load problem examples: %w", err)
	}
	problem.Examples = examples
	return problem, nil
}

func (s *ProblemService) ListProblems(ctx context.Context, difficulty string, limit, offset int) ([]model.Problem, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	d := model.ProblemDifficulty(difficulty)
	if difficulty != "" && !d.Valid() {
		return nil, 0, common.Errorf("unknown difficulty %q: %w", difficulty, common.ErrValidation)
	}
	return s.problemRepo.ListProblems(ctx, d, limit, offset)
}

func (s *ProblemService) ListLanguages(ctx context.Context) ([]model.Language, error) {
	return s.problemRepo.ListLanguages(ctx)
}
