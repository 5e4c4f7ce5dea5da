package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
)

type BattleRepository interface {
	CreateBattle(ctx context.Context, battle *model.Battle) error
	FindBattleByID(ctx context.Context, id string) (*model.Battle, error)
	ListBattles(ctx context.Context, status model.BattleStatus, limit, offset int) ([]model.Battle, int, error)
	ListBattlesForUser(ctx context.Context, userID string, limit, offset int) ([]model.Battle, int, error)

	// JoinBattle is the waiting -> in_progress transition. The update is
	// scoped by id AND prior status so two concurrent joins race safely:
	// the loser gets common.ErrConflict, never another user's write.
	JoinBattle(ctx context.Context, battleID, defenderID string, startedAt time.Time) (*model.Battle, error)

	// EndBattle is the in_progress -> completed transition, guarded the
	// same way. It accepts a transaction so rating updates commit
	// atomically with the resolution.
	EndBattle(ctx context.Context, tx *sql.Tx, battleID, winnerID string, endedAt time.Time) (*model.Battle, error)
}

type pgBattleRepository struct {
	db *sql.DB
}

func NewPgBattleRepository(db *sql.DB) BattleRepository {
	return &pgBattleRepository{db: db}
}

func (r *pgBattleRepository) CreateBattle(ctx context.Context, b *model.Battle) error {
	query := `INSERT INTO battles (id, creator_id, problem_id, language_slug, difficulty, duration_minutes, rated, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, b.ID, b.CreatorID, b.ProblemID, b.LanguageSlug, b.Difficulty, b.DurationMinutes, b.Rated, b.Status)
	if err != nil {
		return fmt.Errorf("pgBattleRepository.CreateBattle: %w", err)
	}
	return nil
}

const battleColumns = `
	b.id, b.creator_id, b.defender_id, b.problem_id, b.language_slug, b.difficulty,
	b.duration_minutes, b.rated, b.status, b.winner_id, b.created_at, b.started_at, b.ended_at,
	cu.username AS creator_username, du.username AS defender_username`

const battleJoins = `
	FROM battles b
	JOIN users cu ON b.creator_id = cu.id
	LEFT JOIN users du ON b.defender_id = du.id`

func scanBattle(row interface{ Scan(...interface{}) error }) (*model.Battle, error) {
	b := &model.Battle{}
	err := row.Scan(
		&b.ID, &b.CreatorID, &b.DefenderID, &b.ProblemID, &b.LanguageSlug, &b.Difficulty,
		&b.DurationMinutes, &b.Rated, &b.Status, &b.WinnerID, &b.CreatedAt, &b.StartedAt, &b.EndedAt,
		&b.CreatorUsername, &b.DefenderUsername,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// rowQuerier is the slice of *sql.DB / *sql.Tx the single-row reads need,
// so lookups can run inside an open transaction when one is supplied.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func findBattle(ctx context.Context, q rowQuerier, id string) (*model.Battle, error) {
	query := `SELECT ` + battleColumns + battleJoins + ` WHERE b.id = $1`
	battle, err := scanBattle(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return battle, nil
}

func (r *pgBattleRepository) FindBattleByID(ctx context.Context, id string) (*model.Battle, error) {
	battle, err := findBattle(ctx, r.db, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgBattleRepository.FindBattleByID: %w", err)
	}
	return battle, nil
}

func (r *pgBattleRepository) ListBattles(ctx context.Context, status model.BattleStatus, limit, offset int) ([]model.Battle, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM battles WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgBattleRepository.ListBattles count: %w", err)
	}

	query := `SELECT ` + battleColumns + battleJoins + `
	          WHERE b.status = $1 ORDER BY b.created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgBattleRepository.ListBattles query: %w", err)
	}
	defer rows.Close()

	battles := []model.Battle{}
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgBattleRepository.ListBattles scan: %w", err)
		}
		battles = append(battles, *b)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgBattleRepository.ListBattles rows.Err: %w", err)
	}
	return battles, total, nil
}

func (r *pgBattleRepository) ListBattlesForUser(ctx context.Context, userID string, limit, offset int) ([]model.Battle, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM battles WHERE creator_id = $1 OR defender_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgBattleRepository.ListBattlesForUser count: %w", err)
	}

	query := `SELECT ` + battleColumns + battleJoins + `
	          WHERE b.creator_id = $1 OR b.defender_id = $1
	          ORDER BY b.created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgBattleRepository.ListBattlesForUser query: %w", err)
	}
	defer rows.Close()

	battles := []model.Battle{}
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgBattleRepository.ListBattlesForUser scan: %w", err)
		}
		battles = append(battles, *b)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgBattleRepository.ListBattlesForUser rows.Err: %w", err)
	}
	return battles, total, nil
}

func (r *pgBattleRepository) JoinBattle(ctx context.Context, battleID, defenderID string, startedAt time.Time) (*model.Battle, error) {
	query := `UPDATE battles
	          SET defender_id = $2, status = $3, started_at = $4
	          WHERE id = $1 AND status = $5 AND creator_id <> $2
	          RETURNING id`
	var id string
	err := r.db.QueryRowContext(ctx, query, battleID, defenderID, model.BattleInProgress, startedAt, model.BattleWaiting).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing battle from a lost race.
			if _, findErr := r.FindBattleByID(ctx, battleID); errors.Is(findErr, common.ErrNotFound) {
				return nil, common.ErrNotFound
			}
			return nil, fmt.Errorf("battle is no longer open to join: %w", common.ErrConflict)
		}
		return nil, fmt.Errorf("pgBattleRepository.JoinBattle: %w", err)
	}
	return r.FindBattleByID(ctx, battleID)
}

func (r *pgBattleRepository) EndBattle(ctx context.Context, tx *sql.Tx, battleID, winnerID string, endedAt time.Time) (*model.Battle, error) {
	query := `UPDATE battles
	          SET status = $2, winner_id = $3, ended_at = $4
	          WHERE id = $1 AND status = $5
	          RETURNING id`

	q := rowQuerier(r.db)
	if tx != nil {
		q = tx
	}

	var id string
	err := q.QueryRowContext(ctx, query, battleID, model.BattleCompleted, winnerID, endedAt, model.BattleInProgress).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, findErr := findBattle(ctx, q, battleID); errors.Is(findErr, common.ErrNotFound) {
				return nil, common.ErrNotFound
			}
			return nil, fmt.Errorf("battle already resolved: %w", common.ErrConflict)
		}
		return nil, fmt.Errorf("pgBattleRepository.EndBattle: %w", err)
	}

	// Reload through the same transaction so the caller gets the
	// uncommitted write, not the pre-update row.
	battle, err := findBattle(ctx, q, battleID)
	if err != nil {
		return nil, fmt.Errorf("pgBattleRepository.EndBattle reload: %w", err)
	}
	return battle, nil
}
