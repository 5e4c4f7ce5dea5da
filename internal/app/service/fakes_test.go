package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
)

// In-memory repository doubles. They reproduce the store-side guarantees
// the pg implementations rely on: conditional updates that fail with
// ErrConflict when the prior status no longer holds, and the unique
// (battle, user) constraint on solutions.

type fakeBattleRepo struct {
	mu      sync.Mutex
	battles map[string]model.Battle
}

func newFakeBattleRepo() *fakeBattleRepo {
	return &fakeBattleRepo{battles: map[string]model.Battle{}}
}

func (r *fakeBattleRepo) CreateBattle(_ context.Context, b *model.Battle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	r.battles[b.ID] = *b
	return nil
}

func (r *fakeBattleRepo) FindBattleByID(_ context.Context, id string) (*model.Battle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := b
	return &out, nil
}

func (r *fakeBattleRepo) ListBattles(_ context.Context, status model.BattleStatus, limit, offset int) ([]model.Battle, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Battle
	for _, b := range r.battles {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (r *fakeBattleRepo) ListBattlesForUser(_ context.Context, userID string, limit, offset int) ([]model.Battle, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Battle
	for _, b := range r.battles {
		if b.IsParticipant(userID) {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (r *fakeBattleRepo) JoinBattle(_ context.Context, battleID, defenderID string, startedAt time.Time) (*model.Battle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[battleID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if b.Status != model.BattleWaiting || b.CreatorID == defenderID {
		return nil, fmt.Errorf("battle is no longer open to join: %w", common.ErrConflict)
	}
	b.DefenderID = &defenderID
	b.Status = model.BattleInProgress
	b.StartedAt = &startedAt
	r.battles[battleID] = b
	out := b
	return &out, nil
}

func (r *fakeBattleRepo) EndBattle(_ context.Context, _ *sql.Tx, battleID, winnerID string, endedAt time.Time) (*model.Battle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[battleID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if b.Status != model.BattleInProgress {
		return nil, fmt.Errorf("battle already resolved: %w", common.ErrConflict)
	}
	b.Status = model.BattleCompleted
	b.WinnerID = &winnerID
	b.EndedAt = &endedAt
	r.battles[battleID] = b
	out := b
	return &out, nil
}

type fakeSolutionRepo struct {
	mu        sync.Mutex
	solutions map[string]model.Solution // key: battleID "/" userID
}

func newFakeSolutionRepo() *fakeSolutionRepo {
	return &fakeSolutionRepo{solutions: map[string]model.Solution{}}
}

func solutionKey(battleID, userID string) string { return battleID + "/" + userID }

func (r *fakeSolutionRepo) CreateSolution(_ context.Context, s *model.Solution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := solutionKey(s.BattleID, s.UserID)
	if _, exists := r.solutions[key]; exists {
		return fmt.Errorf("solution already submitted for this battle: %w", common.ErrConflict)
	}
	r.solutions[key] = *s
	return nil
}

func (r *fakeSolutionRepo) FindByBattleAndUser(_ context.Context, battleID, userID string) (*model.Solution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.solutions[solutionKey(battleID, userID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := s
	return &out, nil
}

func (r *fakeSolutionRepo) ListByBattle(_ context.Context, battleID string) ([]model.Solution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Solution
	for _, s := range r.solutions {
		if s.BattleID == battleID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newFakeUserRepo(users ...model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]model.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return fmt.Errorf("user already exists: %w", common.ErrConflict)
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) findWhere(match func(model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.findWhere(func(u model.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.findWhere(func(u model.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return r.findWhere(func(u model.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) AdjustRating(_ context.Context, _ *sql.Tx, userID string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return 0, common.ErrNotFound
	}
	u.Rating += delta
	r.users[userID] = u
	return u.Rating, nil
}

func (r *fakeUserRepo) GetLeaderboard(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LeaderboardEntry
	for _, u := range r.users {
		out = append(out, model.LeaderboardEntry{UserID: u.ID, Username: u.Username, Rating: u.Rating})
	}
	return out, nil
}

type fakeProblemRepo struct {
	mu        sync.Mutex
	problems  map[string]model.Problem
	languages map[string]model.Language
}

func newFakeProblemRepo(problems ...model.Problem) *fakeProblemRepo {
	r := &fakeProblemRepo{problems: map[string]model.Problem{}, languages: map[string]model.Language{}}
	for _, p := range problems {
		r.problems[p.ID] = p
	}
	r.languages["python3"] = model.Language{ID: "lang-py", Name: "Python 3", Slug: "python3", IsActive: true}
	return r
}

func (r *fakeProblemRepo) CreateProblem(_ context.Context, _ *sql.Tx, p *model.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.problems {
		if existing.Slug == p.Slug {
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
	}
	r.problems[p.ID] = *p
	return nil
}

func (r *fakeProblemRepo) FindProblemByID(_ context.Context, id string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := p
	return &out, nil
}

func (r *fakeProblemRepo) FindProblemBySlug(_ context.Context, slug string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.problems {
		if p.Slug == slug {
			out := p
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeProblemRepo) FindRandomByDifficulty(_ context.Context, difficulty model.ProblemDifficulty) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.problems {
		if p.Difficulty == difficulty {
			out := p
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeProblemRepo) ListProblems(_ context.Context, difficulty model.ProblemDifficulty, limit, offset int) ([]model.Problem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Problem
	for _, p := range r.problems {
		if difficulty == "" || p.Difficulty == difficulty {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (r *fakeProblemRepo) AddExamplesToProblem(_ context.Context, _ *sql.Tx, problemID string, examples []model.Example) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[problemID]
	if !ok {
		return common.ErrNotFound
	}
	p.Examples = append(p.Examples, examples...)
	r.problems[problemID] = p
	return nil
}

func (r *fakeProblemRepo) GetExamplesByProblemID(_ context.Context, problemID string) ([]model.Example, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[problemID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return p.Examples, nil
}

func (r *fakeProblemRepo) GetLanguageBySlug(_ context.Context, slug string) (*model.Language, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lang, ok := r.languages[slug]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := lang
	return &out, nil
}

func (r *fakeProblemRepo) ListLanguages(_ context.Context) ([]model.Language, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Language
	for _, lang := range r.languages {
		out = append(out, lang)
	}
	return out, nil
}

type fakeRatingRepo struct {
	mu      sync.Mutex
	changes []model.RatingChange
}

func (r *fakeRatingRepo) CreateChange(_ context.Context, _ *sql.Tx, c *model.RatingChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, *c)
	return nil
}

func (r *fakeRatingRepo) ListByUser(_ context.Context, userID string, limit int) ([]model.RatingChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.RatingChange
	for _, c := range r.changes {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []model.Battle
}

func (p *fakePublisher) Publish(_ context.Context, b *model.Battle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, *b)
}
