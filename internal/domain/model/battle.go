package model

import "time"

type BattleStatus string

const (
	BattleWaiting    BattleStatus = "waiting"
	BattleInProgress BattleStatus = "in_progress"
	BattleCompleted  BattleStatus = "completed"
)

type Battle struct {
	ID              string            `json:"id"`
	CreatorID       string            `json:"creator_id"`
	DefenderID      *string           `json:"defender_id,omitempty"`
	ProblemID       string            `json:"problem_id"`
	LanguageSlug    string            `json:"language_slug"`
	Difficulty      ProblemDifficulty `json:"difficulty"`
	DurationMinutes int               `json:"duration_minutes"`
	Rated           bool              `json:"rated"`
	Status          BattleStatus      `json:"status"`
	WinnerID        *string           `json:"winner_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	EndedAt         *time.Time        `json:"ended_at,omitempty"`

	CreatorUsername  *string `json:"creator_username,omitempty"`  // For display
	DefenderUsername *string `json:"defender_username,omitempty"` // For display
}

// IsParticipant reports whether userID is the creator or the defender.
func (b *Battle) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	if b.CreatorID == userID {
		return true
	}
	return b.DefenderID != nil && *b.DefenderID == userID
}

// Opponent returns the other participant's ID. The second return is false
// when userID is not a participant or the battle has no defender yet.
func (b *Battle) Opponent(userID string) (string, bool) {
	if b.DefenderID == nil || !b.IsParticipant(userID) {
		return "", false
	}
	if b.CreatorID == userID {
		return *b.DefenderID, true
	}
	return b.CreatorID, true
}

// RemainingSeconds reports the countdown value at the given instant,
// rounded up to whole seconds and floored at zero. Returns 0 when the
// battle has not started.
func (b *Battle) RemainingSeconds(now time.Time) int {
	deadline, ok := b.Deadline()
	if !ok {
		return 0
	}
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Deadline is the instant the countdown expires. Only defined once the
// battle has started.
func (b *Battle) Deadline() (time.Time, bool) {
	if b.StartedAt == nil {
		return time.Time{}, false
	}
	return b.StartedAt.Add(time.Duration(b.DurationMinutes) * time.Minute), true
}
