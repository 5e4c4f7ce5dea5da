package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ProblemRepository interface {
	CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error)
	FindRandomByDifficulty(ctx context.Context, difficulty model.ProblemDifficulty) (*model.Problem, error)
	ListProblems(ctx context.Context, difficulty model.ProblemDifficulty, limit, offset int) ([]model.Problem, int, error)

	AddExamplesToProblem(ctx context.Context, tx *sql.Tx, problemID string, examples []model.Example) error
	GetExamplesByProblemID(ctx context.Context, problemID string) ([]model.Example, error)

	GetLanguageBySlug(ctx context.Context, slug string) (*model.Language, error)
	ListLanguages(ctx context.Context) ([]model.Language, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `INSERT INTO problems (id, title, slug, description, difficulty, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, p.ID, p.Title, p.Slug, p.Description, p.Difficulty, p.CreatedByID)
	} else {
		_, err = r.db.ExecContext(ctx, query, p.ID, p.Title, p.Slug, p.Description, p.Difficulty, p.CreatedByID)
	}

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

const problemColumns = `
	p.id, p.title, p.slug, p.description, p.difficulty,
	p.created_by, cb_user.username AS created_by_username, p.created_at, p.updated_at`

const problemJoins = `
	FROM problems p
	LEFT JOIN users cb_user ON p.created_by = cb_user.id`

func scanProblem(row interface{ Scan(...interface{}) error }) (*model.Problem, error) {
	p := &model.Problem{}
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &p.Difficulty,
		&p.CreatedByID, &p.CreatedByUsername, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + problemJoins + ` WHERE p.id = $1`
	problem, err := scanProblem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}
	return problem, nil
}

func (r *pgProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + problemJoins + ` WHERE p.slug = $1`
	problem, err := scanProblem(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemBySlug: %w", err)
	}
	return problem, nil
}

func (r *pgProblemRepository) FindRandomByDifficulty(ctx context.Context, difficulty model.ProblemDifficulty) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + problemJoins + `
	          WHERE p.difficulty = $1 ORDER BY random() LIMIT 1`
	problem, err := scanProblem(r.db.QueryRowContext(ctx, query, difficulty))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindRandomByDifficulty: %w", err)
	}
	return problem, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, difficulty model.ProblemDifficulty, limit, offset int) ([]model.Problem, int, error) {
	where := ""
	countArgs := []interface{}{}
	args := []interface{}{}
	if difficulty != "" {
		where = ` WHERE p.difficulty = $1`
		countArgs = append(countArgs, difficulty)
		args = append(args, difficulty)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM problems p` + where
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	query := `SELECT ` + problemColumns + problemJoins + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems rows.Err: %w", err)
	}
	return problems, total, nil
}

func (r *pgProblemRepository) AddExamplesToProblem(ctx context.Context, tx *sql.Tx, problemID string, examples []model.Example) error {
	if len(examples) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO examples (id, problem_id, input, expected_output, explanation, sort_order) VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.AddExamplesToProblem prepare: %w", err)
	}
	defer stmt.Close()

	for i, ex := range examples {
		ex.SortOrder = i + 1 // Auto-assign sort order
		_, err := stmt.ExecContext(ctx, ex.ID, problemID, ex.Input, ex.ExpectedOutput, ex.Explanation, ex.SortOrder)
		if err != nil {
			return fmt.Errorf("pgProblemRepository.AddExamplesToProblem exec for example %s: %w", ex.ID, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetExamplesByProblemID(ctx context.Context, problemID string) ([]model.Example, error) {
	query := `SELECT id, problem_id, input, expected_output, explanation, sort_order, created_at
	          FROM examples WHERE problem_id = $1 ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetExamplesByProblemID query: %w", err)
	}
	defer rows.Close()

	var examples []model.Example
	for rows.Next() {
		var ex model.Example
		if err := rows.Scan(&ex.ID, &ex.ProblemID, &ex.Input, &ex.ExpectedOutput, &ex.Explanation, &ex.SortOrder, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetExamplesByProblemID scan: %w", err)
		}
		examples = append(examples, ex)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetExamplesByProblemID rows.Err: %w", err)
	}
	return examples, nil
}

func (r *pgProblemRepository) GetLanguageBySlug(ctx context.Context, slug string) (*model.Language, error) {
	query := `SELECT id, name, slug, is_active, created_at FROM languages WHERE slug = $1 AND is_active = TRUE`
	lang := &model.Language{}
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&lang.ID, &lang.Name, &lang.Slug, &lang.IsActive, &lang.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.GetLanguageBySlug: %w", err)
	}
	return lang, nil
}

func (r *pgProblemRepository) ListLanguages(ctx context.Context) ([]model.Language, error) {
	query := `SELECT id, name, slug, is_active, created_at FROM languages WHERE is_active = TRUE ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListLanguages query: %w", err)
	}
	defer rows.Close()

	var languages []model.Language
	for rows.Next() {
		var lang model.Language
		if err := rows.Scan(&lang.ID, &lang.Name, &lang.Slug, &lang.IsActive, &lang.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListLanguages scan: %w", err)
		}
		languages = append(languages, lang)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListLanguages rows.Err: %w", err)
	}
	return languages, nil
}
