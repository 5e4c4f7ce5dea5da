package model

import "time"

type Feedback struct {
	ID        string    `json:"id"`
	BattleID  string    `json:"battle_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
