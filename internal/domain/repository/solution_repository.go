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

type SolutionRepository interface {
	// CreateSolution inserts exactly one row; the unique (battle_id,
	// user_id) index rejects a second submission instead of overwriting
	// the first.
	CreateSolution(ctx context.Context, solution *model.Solution) error

	// FindByBattleAndUser returns common.ErrNotFound when the pair has no
	// solution. Callers treat absence as a normal state, not a failure.
	FindByBattleAndUser(ctx context.Context, battleID, userID string) (*model.Solution, error)

	ListByBattle(ctx context.Context, battleID string) ([]model.Solution, error)
}

type pgSolutionRepository struct {
	db *sql.DB
}

func NewPgSolutionRepository(db *sql.DB) SolutionRepository {
	return &pgSolutionRepository{db: db}
}

func (r *pgSolutionRepository) CreateSolution(ctx context.Context, s *model.Solution) error {
	query := `INSERT INTO solutions (id, battle_id, user_id, code, submitted_at)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.BattleID, s.UserID, s.Code, s.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return fmt.Errorf("solution already submitted for this battle: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgSolutionRepository.CreateSolution: %w", err)
	}
	return nil
}

func (r *pgSolutionRepository) FindByBattleAndUser(ctx context.Context, battleID, userID string) (*model.Solution, error) {
	query := `SELECT id, battle_id, user_id, code, submitted_at
	          FROM solutions WHERE battle_id = $1 AND user_id = $2`
	s := &model.Solution{}
	err := r.db.QueryRowContext(ctx, query, battleID, userID).Scan(
		&s.ID, &s.BattleID, &s.UserID, &s.Code, &s.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSolutionRepository.FindByBattleAndUser: %w", err)
	}
	return s, nil
}

func (r *pgSolutionRepository) ListByBattle(ctx context.Context, battleID string) ([]model.Solution, error) {
	query := `SELECT id, battle_id, user_id, code, submitted_at
	          FROM solutions WHERE battle_id = $1 ORDER BY submitted_at ASC`
	rows, err := r.db.QueryContext(ctx, query, battleID)
	if err != nil {
		return nil, fmt.Errorf("pgSolutionRepository.ListByBattle query: %w", err)
	}
	defer rows.Close()

	var solutions []model.Solution
	for rows.Next() {
		var s model.Solution
		if err := rows.Scan(&s.ID, &s.BattleID, &s.UserID, &s.Code, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("pgSolutionRepository.ListByBattle scan: %w", err)
		}
		solutions = append(solutions, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSolutionRepository.ListByBattle rows.Err: %w", err)
	}
	return solutions, nil
}
