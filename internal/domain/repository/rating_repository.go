package repository

import (
	"context"
	"database/sql"
	"fmt"

	"code_clash/internal/domain/model"
)

type RatingRepository interface {
	CreateChange(ctx context.Context, tx *sql.Tx, change *model.RatingChange) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.RatingChange, error)
}

type pgRatingRepository struct {
	db *sql.DB
}

func NewPgRatingRepository(db *sql.DB) RatingRepository {
	return &pgRatingRepository{db: db}
}

func (r *pgRatingRepository) CreateChange(ctx context.Context, tx *sql.Tx, c *model.RatingChange) error {
	query := `INSERT INTO rating_history (id, user_id, battle_id, rating_before, rating_after)
	          VALUES ($1, $2, $3, $4, $5)`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, c.ID, c.UserID, c.BattleID, c.RatingBefore, c.RatingAfter)
	} else {
		_, err = r.db.ExecContext(ctx, query, c.ID, c.UserID, c.BattleID, c.RatingBefore, c.RatingAfter)
	}
	if err != nil {
		return fmt.Errorf("pgRatingRepository.CreateChange: %w", err)
	}
	return nil
}

func (r *pgRatingRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.RatingChange, error) {
	query := `SELECT id, user_id, battle_id, rating_before, rating_after, created_at
	          FROM rating_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgRatingRepository.ListByUser query: %w", err)
	}
	defer rows.Close()

	changes := []model.RatingChange{}
	for rows.Next() {
		var c model.RatingChange
		if err := rows.Scan(&c.ID, &c.UserID, &c.BattleID, &c.RatingBefore, &c.RatingAfter, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgRatingRepository.ListByUser scan: %w", err)
		}
		changes = append(changes, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgRatingRepository.ListByUser rows.Err: %w", err)
	}
	return changes, nil
}
