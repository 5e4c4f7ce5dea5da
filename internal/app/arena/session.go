package arena

import (
	"context"
	"errors"
	"log"
	"time"

	"code_clash/internal/app/service"
	"code_clash/internal/common"
	"code_clash/internal/domain/model"
)

// BattleViewer is the slice of BattleService a session needs. Injected so
// tests can substitute a double.
type BattleViewer interface {
	BattleView(ctx context.Context, battleID, viewerID string) (*service.BattleView, error)
	ViewFromSnapshot(ctx context.Context, battle *model.Battle, viewerID string) (*service.BattleView, error)
	ResolveTimeout(ctx context.Context, battleID, viewerID string) (*model.Battle, error)
}

// Session drives one viewer's arena: a 1-second countdown tick, a periodic
// state refresh, and the best-effort timeout resolution. Whichever
// participant's session first observes the deadline performs the end
// transition; the store's conditional update discards the runner-up's claim.
type Session struct {
	battles  BattleViewer
	battleID string
	viewerID string

	// Optional push feed of battle snapshots; polling remains the
	// fallback when nil.
	snapshots <-chan model.Battle

	tickEvery    time.Duration
	refreshEvery time.Duration
	now          func() time.Time

	view     *service.BattleView // last confirmed server state
	resolved bool                // timeout resolution attempted once per session
}

func NewSession(battles BattleViewer, battleID, viewerID string, snapshots <-chan model.Battle, refreshEvery time.Duration) *Session {
	if refreshEvery <= 0 {
		refreshEvery = 5 * time.Second
	}
	return &Session{
		battles:      battles,
		battleID:     battleID,
		viewerID:     viewerID,
		snapshots:    snapshots,
		tickEvery:    time.Second,
		refreshEvery: refreshEvery,
		now:          time.Now,
	}
}

// Run streams view snapshots on out until the battle completes or ctx is
// cancelled. Cancelling ctx (the viewer navigating away) stops the local
// timer and refresh; it does not undo writes already in flight.
func (s *Session) Run(ctx context.Context, out chan<- service.BattleView) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}
	if !s.emit(ctx, out) {
		return ctx.Err()
	}
	if s.done() {
		return nil
	}

	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()
	refresh := time.NewTicker(s.refreshEvery)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case battle, ok := <-s.snapshots:
			if !ok {
				s.snapshots = nil // push feed gone, keep polling
				continue
			}
			s.applySnapshot(ctx, &battle)

		case <-refresh.C:
			// Best effort: a failed refresh keeps the last confirmed
			// state, it never tears the session down.
			if err := s.refresh(ctx); err != nil {
				log.Printf("WARN: arena refresh for battle %s: %v", s.battleID, err)
			}

		case <-ticker.C:
			s.tick(ctx)
		}

		if !s.emit(ctx, out) {
			return ctx.Err()
		}
		if s.done() {
			return nil
		}
	}
}

func (s *Session) done() bool {
	return s.view != nil && s.view.Battle.Status == model.BattleCompleted
}

func (s *Session) refresh(ctx context.Context) error {
	view, err := s.battles.BattleView(ctx, s.battleID, s.viewerID)
	if err != nil {
		return err
	}
	s.view = view
	return nil
}

func (s *Session) applySnapshot(ctx context.Context, battle *model.Battle) {
	view, err := s.battles.ViewFromSnapshot(ctx, battle, s.viewerID)
	if err != nil {
		log.Printf("WARN: arena snapshot for battle %s: %v", s.battleID, err)
		return
	}
	s.view = view
}

// tick recomputes the countdown from the wall clock and, the first time it
// observes an expired in-progress battle, attempts the timeout resolution.
func (s *Session) tick(ctx context.Context) {
	if s.view == nil || s.view.Battle.Status != model.BattleInProgress {
		return
	}

	remaining := s.view.Battle.RemainingSeconds(s.now())
	s.view.RemainingSeconds = &remaining

	if remaining > 0 || s.resolved || s.view.Battle.WinnerID != nil {
		return
	}
	s.resolved = true

	battle, err := s.battles.ResolveTimeout(ctx, s.battleID, s.viewerID)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			// The opponent's session resolved first; fetch their result.
			if rErr := s.refresh(ctx); rErr != nil {
				log.Printf("WARN: arena refresh after lost resolution race for battle %s: %v", s.battleID, rErr)
			}
			return
		}
		log.Printf("WARN: arena timeout resolution for battle %s: %v", s.battleID, err)
		return
	}
	s.applySnapshot(ctx, battle)
}

// emit pushes the current view to the consumer; false means ctx ended.
func (s *Session) emit(ctx context.Context, out chan<- service.BattleView) bool {
	if s.view == nil {
		return true
	}
	select {
	case out <- *s.view:
		return true
	case <-ctx.Done():
		return false
	}
}
