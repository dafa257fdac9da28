package models

import "time"

// RobotClass описывает весовую категорию и тайминги арены для неё.
type RobotClass struct {
	ID                int       `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	WeightLimitGrams  int       `json:"weight_limit_grams" db:"weight_limit_grams"`
	MatchDurationSec  int       `json:"match_duration_sec" db:"match_duration_sec"`
	PitActivationSec  int       `json:"pit_activation_sec" db:"pit_activation_sec"`
	ButtonDelaySec    *int      `json:"button_delay_sec,omitempty" db:"button_delay_sec"`
	ButtonDurationSec *int      `json:"button_duration_sec,omitempty" db:"button_duration_sec"`
	Description       *string   `json:"description,omitempty" db:"description"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Robot — машина команды в конкретной весовой категории.
type Robot struct {
	ID           int       `json:"id" db:"id"`
	TeamID       int       `json:"team_id" db:"team_id"`
	RobotClassID int       `json:"robot_class_id" db:"robot_class_id"`
	Name         string    `json:"name" db:"name"`
	Waitlist     bool      `json:"waitlist" db:"waitlist"`
	FeePaid      bool      `json:"fee_paid" db:"fee_paid"`
	Comments     *string   `json:"comments,omitempty" db:"comments"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	RobotClass *RobotClass `json:"robot_class,omitempty" db:"-"`
}

// Player — участник команды.
type Player struct {
	ID        int       `json:"id" db:"id"`
	TeamID    int       `json:"team_id" db:"team_id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     *string   `json:"email,omitempty" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
