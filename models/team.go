package models

import "time"

// Team представляет команду, зарегистрированную на турнир.
// Seed — необязательный посев (меньше = сильнее), задаётся организатором.
type Team struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Seed         *int      `json:"seed,omitempty" db:"seed"`
	Address      *string   `json:"address,omitempty" db:"address"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	Email        *string   `json:"email,omitempty" db:"email"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`

	Robots  []Robot  `json:"robots,omitempty" db:"-"`
	Players []Player `json:"players,omitempty" db:"-"`
}
