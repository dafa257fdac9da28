package models

import "time"

type BracketStatus string

const (
	BracketActive   BracketStatus = "active"
	BracketFinished BracketStatus = "finished"
)

// Bracket — олимпийская сетка одного вида (winners или losers).
// Матчи адресуются парой (round, slot); слот раунда r+1 детерминированно
// вычисляется из слотов подводящих матчей раунда r.
type Bracket struct {
	ID           int           `json:"id" db:"id"`
	TournamentID int           `json:"tournament_id" db:"tournament_id"`
	Kind         BracketKind   `json:"kind" db:"kind"`
	Status       BracketStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`

	Rounds [][]*Match `json:"rounds,omitempty" db:"-"`
}
