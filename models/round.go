package models

import "time"

// SwissRound — один тур швейцарской фазы. После генерации всех матчей
// тур неизменяем: частичная перегенерация не допускается.
type SwissRound struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Number       int       `json:"number" db:"number"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	Matches []*Match `json:"matches,omitempty" db:"-"`
}
