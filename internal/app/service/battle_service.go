package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
	"code_clash/internal/domain/repository"

	"github.com/google/uuid"
)

// BattlePublisher broadcasts battle snapshots after successful lifecycle
// transitions. Satisfied by queue.BattleFeed; nil disables publishing.
type BattlePublisher interface {
	Publish(ctx context.Context, battle *model.Battle)
}

type BattleService struct {
	battleRepo   repository.BattleRepository
	solutionRepo repository.SolutionRepository
	problemRepo  repository.ProblemRepository
	userRepo     repository.UserRepository
	rating       *RatingService
	feed         BattlePublisher
	db           *sql.DB // For transactions
	now          func() time.Time
}

func NewBattleService(
	battleRepo repository.BattleRepository,
	solutionRepo repository.SolutionRepository,
	problemRepo repository.ProblemRepository,
	userRepo repository.UserRepository,
	rating *RatingService,
	feed BattlePublisher,
	db *sql.DB,
) *BattleService {
	return &BattleService{
		battleRepo:   battleRepo,
		solutionRepo: solutionRepo,
		problemRepo:  problemRepo,
		userRepo:     userRepo,
		rating:       rating,
		feed:         feed,
		db:           db,
		now:          time.Now,
	}
}

type CreateBattleRequest struct {
	ProblemID       string `json:"problem_id,omitempty"` // Random pick by difficulty when empty
	LanguageSlug    string `json:"language_slug"`
	Difficulty      string `json:"difficulty"`
	DurationMinutes int    `json:"duration_minutes"`
	Rated           bool   `json:"rated"`
}

func (s *BattleService) CreateBattle(ctx context.Context, creatorID string, req CreateBattleRequest, maxDurationMins int) (*model.Battle, error) {
	difficulty := model.ProblemDifficulty(req.Difficulty)
	if !difficulty.Valid() {
		return nil, common.Errorf("unknown difficulty %q: %w", req.Difficulty, common.ErrValidation)
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > maxDurationMins {
		return nil, common.Errorf("duration must be between 1 and %d minutes: %w", maxDurationMins, common.ErrValidation)
	}

	language, err := s.problemRepo.GetLanguageBySlug(ctx, req.LanguageSlug)
	if err != nil {
		return nil, common.Errorf("language not found or inactive: %w", common.ErrBadRequest)
	}

	var problem *model.Problem
	if req.ProblemID != "" {
		problem, err = s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	} else {
		problem, err = s.problemRepo.FindRandomByDifficulty(ctx, difficulty)
	}
	if err != nil {
		return nil, common.Errorf("no problem available for battle: %w", err)
	}

	battle := &model.Battle{
		ID:              uuid.NewString(),
		CreatorID:       creatorID,
		ProblemID:       problem.ID,
		LanguageSlug:    language.Slug,
		Difficulty:      difficulty,
		DurationMinutes: req.DurationMinutes,
		Rated:           req.Rated,
		Status:          model.BattleWaiting,
	}
	if err := s.battleRepo.CreateBattle(ctx, battle); err != nil {
		return nil, common.Errorf("failed to create battle: %w", err)
	}

	return s.battleRepo.FindBattleByID(ctx, battle.ID)
}

func (s *BattleService) GetBattle(ctx context.Context, id string) (*model.Battle, error) {
	return s.battleRepo.FindBattleByID(ctx, id)
}

func (s *BattleService) ListOpenBattles(ctx context.Context, limit, offset int) ([]model.Battle, int, error) {
	return s.battleRepo.ListBattles(ctx, model.BattleWaiting, limit, offset)
}

func (s *BattleService) ListMyBattles(ctx context.Context, userID string, limit, offset int) ([]model.Battle, int, error) {
	return s.battleRepo.ListBattlesForUser(ctx, userID, limit, offset)
}

// JoinBattle performs the waiting -> in_progress transition. The repository
// update is conditional on the battle still being open, so of two racing
// joiners exactly one succeeds and the other sees a conflict.
func (s *BattleService) JoinBattle(ctx context.Context, battleID, userID string) (*model.Battle, error) {
	battle, err := s.battleRepo.FindBattleByID(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if battle.IsParticipant(userID) {
		return nil, common.Errorf("cannot join a battle you are already part of: %w", common.ErrValidation)
	}
	if battle.Status != model.BattleWaiting {
		return nil, common.Errorf("battle is not open to join: %w", common.ErrConflict)
	}

	joined, err := s.battleRepo.JoinBattle(ctx, battleID, userID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.publish(ctx, joined)
	return joined, nil
}

// SubmitSolution enforces the submission gate: caller has joined, battle is
// in progress, and the caller has no prior solution. The unique index on
// (battle_id, user_id) backstops the prior-solution check under races.
func (s *BattleService) SubmitSolution(ctx context.Context, battleID, userID, code string) (*model.Solution, error) {
	if strings.TrimSpace(code) == "" {
		return nil, common.Errorf("solution code must not be empty: %w", common.ErrValidation)
	}

	battle, err := s.battleRepo.FindBattleByID(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if !battle.IsParticipant(userID) {
		return nil, common.Errorf("only battle participants may submit: %w", common.ErrForbidden)
	}
	if battle.Status != model.BattleInProgress {
		return nil, common.Errorf("battle is not in progress: %w", common.ErrConflict)
	}

	if _, err := s.solutionRepo.FindByBattleAndUser(ctx, battleID, userID); err == nil {
		return nil, common.Errorf("solution already submitted for this battle: %w", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, common.Errorf("failed to check for prior solution: %w", err)
	}

	solution := &model.Solution{
		ID:          uuid.NewString(),
		BattleID:    battleID,
		UserID:      userID,
		Code:        code,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.solutionRepo.CreateSolution(ctx, solution); err != nil {
		return nil, err
	}
	return solution, nil
}

func (s *BattleService) GetSolution(ctx context.Context, battleID, userID string) (*model.Solution, error) {
	return s.solutionRepo.FindByBattleAndUser(ctx, battleID, userID)
}

// EndBattle performs the in_progress -> completed transition. The caller
// must be a participant and the winner must be one of the two participants.
// Rated battles adjust both ratings in the same transaction as the
// conditional status update.
func (s *BattleService) EndBattle(ctx context.Context, battleID, callerID, winnerID string) (*model.Battle, error) {
	battle, err := s.battleRepo.FindBattleByID(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if !battle.IsParticipant(callerID) {
		return nil, common.Errorf("only battle participants may end a battle: %w", common.ErrForbidden)
	}
	if !battle.IsParticipant(winnerID) {
		return nil, common.Errorf("winner must be a battle participant: %w", common.ErrValidation)
	}
	if battle.Status != model.BattleInProgress {
		return nil, common.Errorf("battle is not in progress: %w", common.ErrConflict)
	}

	loserID, _ := battle.Opponent(winnerID)

	var tx *sql.Tx
	if s.db != nil {
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, common.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()
	}

	ended, err := s.battleRepo.EndBattle(ctx, tx, battleID, winnerID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if battle.Rated && s.rating != nil {
		if err := s.rating.ApplyResult(ctx, tx, battleID, winnerID, loserID); err != nil {
			return nil, common.Errorf("failed to apply rating result: %w", err)
		}
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return nil, common.Errorf("failed to commit transaction: %w", err)
		}
	}

	s.publish(ctx, ended)
	return ended, nil
}

// ResolveTimeout implements the countdown auto-resolution policy from the
// viewer's perspective: past the deadline, the viewer wins if they have a
// solution on record, otherwise their opponent does. Each client resolves
// best-effort from its own clock; the conditional end update makes sure
// only the first claim lands.
func (s *BattleService) ResolveTimeout(ctx context.Context, battleID, viewerID string) (*model.Battle, error) {
	battle, err := s.battleRepo.FindBattleByID(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if battle.Status != model.BattleInProgress {
		return nil, common.Errorf("battle is not in progress: %w", common.ErrConflict)
	}
	if !battle.IsParticipant(viewerID) {
		return nil, common.Errorf("only battle participants may resolve a timeout: %w", common.ErrForbidden)
	}
	deadline, ok := battle.Deadline()
	if !ok || s.now().Before(deadline) {
		return nil, common.Errorf("battle time has not expired yet: %w", common.ErrValidation)
	}

	hasSolution := true
	if _, err := s.solutionRepo.FindByBattleAndUser(ctx, battleID, viewerID); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("failed to check viewer solution: %w", err)
		}
		hasSolution = false
	}

	winnerID := viewerID
	if !hasSolution {
		opponent, ok := battle.Opponent(viewerID)
		if !ok {
			return nil, common.Errorf("battle has no opponent to award: %w", common.ErrConflict)
		}
		winnerID = opponent
	}

	return s.EndBattle(ctx, battleID, viewerID, winnerID)
}

func (s *BattleService) publish(ctx context.Context, battle *model.Battle) {
	if s.feed == nil || battle == nil {
		return
	}
	s.feed.Publish(ctx, battle)
}
