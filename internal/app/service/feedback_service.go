package service

import (
	"context"
	"strings"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
	"code_clash/internal/domain/repository"

	"github.com/google/uuid"
)

type FeedbackService struct {
	feedbackRepo repository.FeedbackRepository
	battleRepo   repository.BattleRepository
}

func NewFeedbackService(feedbackRepo repository.FeedbackRepository, battleRepo repository.BattleRepository) *FeedbackService {
	return &FeedbackService{feedbackRepo: feedbackRepo, battleRepo: battleRepo}
}

func (s *FeedbackService) Submit(ctx context.Context, battleID, userID, text string) error {
	if strings.TrimSpace(text) == "" {
		return common.Errorf("feedback text must not be empty: %w", common.ErrValidation)
	}
	if _, err := s.battleRepo.FindBattleByID(ctx, battleID); err != nil {
		return err
	}
	feedback := &model.Feedback{
		ID:       uuid.NewString(),
		BattleID: battleID,
		UserID:   userID,
		Text:     text,
	}
	return s.feedbackRepo.CreateFeedback(ctx, feedback)
}
