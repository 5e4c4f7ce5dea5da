package model

import "time"

// RatingChange records one rated-battle adjustment for one participant.
type RatingChange struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	BattleID     string    `json:"battle_id"`
	RatingBefore int       `json:"rating_before"`
	RatingAfter  int       `json:"rating_after"`
	CreatedAt    time.Time `json:"created_at"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
}
