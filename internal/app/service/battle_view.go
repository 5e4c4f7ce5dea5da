package service

import (
	"context"
	"errors"
	"log"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
)

// BattleView is the derived view model handed to the presentation layer.
// Everything here is recomputed from the authoritative battle record on
// every fetch; nothing is persisted.
type BattleView struct {
	Battle           *model.Battle      `json:"battle"`
	Problem          *model.Problem     `json:"problem,omitempty"`
	Winner           *model.Participant `json:"winner,omitempty"`
	Loser            *model.Participant `json:"loser,omitempty"`
	RemainingSeconds *int               `json:"remaining_seconds,omitempty"`
	HasJoined        bool               `json:"has_joined"`
	HasSolution      bool               `json:"has_solution"`
	CanJoin          bool               `json:"can_join"`
	CanSubmit        bool               `json:"can_submit"`
	CanEnd           bool               `json:"can_end"`
}

// BattleView assembles the per-viewer view of a battle: role predicates,
// remaining time, and resolved winner/loser participants.
func (s *BattleService) BattleView(ctx context.Context, battleID, viewerID string) (*BattleView, error) {
	battle, err := s.battleRepo.FindBattleByID(ctx, battleID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, battle, viewerID)
}

// ViewFromSnapshot derives the same view from an already-fetched battle,
// used by arena sessions fed over the snapshot channel.
func (s *BattleService) ViewFromSnapshot(ctx context.Context, battle *model.Battle, viewerID string) (*BattleView, error) {
	return s.buildView(ctx, battle, viewerID)
}

func (s *BattleService) buildView(ctx context.Context, battle *model.Battle, viewerID string) (*BattleView, error) {
	view := &BattleView{Battle: battle}

	problem, err := s.problemRepo.FindProblemByID(ctx, battle.ProblemID)
	if err != nil {
		// Degraded view rather than a hard failure; the battle state
		// itself is still meaningful.
		log.Printf("WARN: problem %s for battle %s: %v", battle.ProblemID, battle.ID, err)
	} else {
		if examples, exErr := s.problemRepo.GetExamplesByProblemID(ctx, problem.ID); exErr == nil {
			problem.Examples = examples
		}
		view.Problem = problem
	}

	view.HasJoined = battle.IsParticipant(viewerID)
	if view.HasJoined {
		if _, err := s.solutionRepo.FindByBattleAndUser(ctx, battle.ID, viewerID); err == nil {
			view.HasSolution = true
		} else if !errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("failed to check viewer solution: %w", err)
		}
	}

	view.CanJoin = !view.HasJoined && battle.Status == model.BattleWaiting
	view.CanSubmit = view.HasJoined && battle.Status == model.BattleInProgress && !view.HasSolution
	view.CanEnd = view.HasJoined && battle.Status == model.BattleInProgress && view.HasSolution

	if battle.Status == model.BattleInProgress {
		remaining := battle.RemainingSeconds(s.now())
		view.RemainingSeconds = &remaining
	}

	if battle.Status == model.BattleCompleted && battle.WinnerID != nil {
		view.Winner = s.lookupParticipant(ctx, *battle.WinnerID)
		if loserID, ok := battle.Opponent(*battle.WinnerID); ok {
			view.Loser = s.lookupParticipant(ctx, loserID)
		}
	}

	return view, nil
}

// lookupParticipant degrades to an "unknown" placeholder when the profile
// fetch fails after resolution, instead of silently omitting the slot.
func (s *BattleService) lookupParticipant(ctx context.Context, userID string) *model.Participant {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		log.Printf("WARN: participant lookup %s failed: %v", userID, err)
		return model.UnknownParticipant(userID)
	}
	return user.Participant()
}
