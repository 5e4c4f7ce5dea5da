package service

import (
	"context"
	"database/sql"
	"math"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
	"code_clash/internal/domain/repository"

	"github.com/google/uuid"
)

// RatingService owns the Elo adjustment applied when a rated battle
// completes, plus read paths for rating history and the leaderboard.
type RatingService struct {
	userRepo   repository.UserRepository
	ratingRepo repository.RatingRepository
	kFactor    int
}

func NewRatingService(userRepo repository.UserRepository, ratingRepo repository.RatingRepository, kFactor int) *RatingService {
	return &RatingService{userRepo: userRepo, ratingRepo: ratingRepo, kFactor: kFactor}
}

// Delta computes the zero-sum rating transfer from loser to winner.
func (s *RatingService) Delta(winnerRating, loserRating int) int {
	expected := 1.0 / (1.0 + math.Pow(10, float64(loserRating-winnerRating)/400.0))
	delta := int(math.Round(float64(s.kFactor) * (1.0 - expected)))
	if delta < 1 {
		delta = 1 // A win always moves the needle.
	}
	return delta
}

// ApplyResult updates both ratings and records history rows, inside the
// caller's transaction so the adjustment commits atomically with the
// battle's end transition.
func (s *RatingService) ApplyResult(ctx context.Context, tx *sql.Tx, battleID, winnerID, loserID string) error {
	winner, err := s.userRepo.FindByID(ctx, winnerID)
	if err != nil {
		return common.Errorf("failed to load winner profile: %w", err)
	}
	loser, err := s.userRepo.FindByID(ctx, loserID)
	if err != nil {
		return common.Errorf("failed to load loser profile: %w", err)
	}

	delta := s.Delta(winner.Rating, loser.Rating)

	// The deltas are applied relatively so a concurrent adjustment to
	// either user composes instead of being overwritten; the returned
	// ratings are what actually landed.
	winnerAfter, err := s.userRepo.AdjustRating(ctx, tx, winner.ID, delta)
	if err != nil {
		return err
	}
	loserAfter, err := s.userRepo.AdjustRating(ctx, tx, loser.ID, -delta)
	if err != nil {
		return err
	}

	changes := []*model.RatingChange{
		{ID: uuid.NewString(), UserID: winner.ID, BattleID: battleID, RatingBefore: winnerAfter - delta, RatingAfter: winnerAfter},
		{ID: uuid.NewString(), UserID: loser.ID, BattleID: battleID, RatingBefore: loserAfter + delta, RatingAfter: loserAfter},
	}
	for _, change := range changes {
		if err := s.ratingRepo.CreateChange(ctx, tx, change); err != nil {
			return err
		}
	}
	return nil
}

func (s *RatingService) History(ctx context.Context, userID string, limit int) ([]model.RatingChange, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.ratingRepo.ListByUser(ctx, userID, limit)
}

func (s *RatingService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.userRepo.GetLeaderboard(ctx, limit)
}
