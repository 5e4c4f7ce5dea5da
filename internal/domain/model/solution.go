package model

import "time"

// Solution is a participant's one-shot code submission for a battle.
// At most one exists per (battle, user) pair and it is never updated.
type Solution struct {
	ID          string    `json:"id"`
	BattleID    string    `json:"battle_id"`
	UserID      string    `json:"user_id"`
	Code        string    `json:"code"`
	SubmittedAt time.Time `json:"submitted_at"`
}
