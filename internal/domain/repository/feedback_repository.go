package repository

import (
	"context"
	"database/sql"
	"fmt"

	"code_clash/internal/domain/model"
)

type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, feedback *model.Feedback) error
}

type pgFeedbackRepository struct {
	db *sql.DB
}

func NewPgFeedbackRepository(db *sql.DB) FeedbackRepository {
	return &pgFeedbackRepository{db: db}
}

func (r *pgFeedbackRepository) CreateFeedback(ctx context.Context, f *model.Feedback) error {
	query := `INSERT INTO feedback (id, battle_id, user_id, text) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, f.ID, f.BattleID, f.UserID, f.Text)
	if err != nil {
		return fmt.Errorf("pgFeedbackRepository.CreateFeedback: %w", err)
	}
	return nil
}
