package models

import "time"

// TournamentFormat определяет формат проведения турнира, соответствует ENUM в БД.
type TournamentFormat string

const (
	FormatHybridSwissElimination TournamentFormat = "hybrid_swiss_elimination"
	FormatSwiss                  TournamentFormat = "swiss"
	FormatSingleElimination      TournamentFormat = "single_elimination"
	FormatDoubleElimination      TournamentFormat = "double_elimination"
)

// TournamentStatus представляет фазы турнира.
type TournamentStatus string

const (
	StatusSetup        TournamentStatus = "setup"
	StatusRegistration TournamentStatus = "registration"
	StatusSwissRounds  TournamentStatus = "swiss_rounds"
	StatusElimination  TournamentStatus = "elimination"
	StatusCompleted    TournamentStatus = "completed"
	StatusCancelled    TournamentStatus = "cancelled"
)

// Tournament представляет одно соревнование боевых роботов.
type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Format      TournamentFormat `json:"format" db:"format"`
	Status      TournamentStatus `json:"status" db:"status"`
	SwissRounds int              `json:"swiss_rounds" db:"swiss_rounds"`
	OrganizerID int              `json:"organizer_id" db:"organizer_id"`
	Location    *string          `json:"location,omitempty" db:"location"`
	Description *string          `json:"description,omitempty" db:"description"`
	StartDate   *time.Time       `json:"start_date,omitempty" db:"start_date"`
	EndDate     *time.Time       `json:"end_date,omitempty" db:"end_date"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
	LogoKey     *string          `json:"-" db:"logo_key"`
	LogoURL     *string          `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Organizer *User   `json:"organizer,omitempty" db:"-"`
	Teams     []Team  `json:"teams,omitempty" db:"-"`
	Matches   []Match `json:"matches,omitempty" db:"-"`
}

// UsesSwiss reports whether the format includes a Swiss phase.
func (f TournamentFormat) UsesSwiss() bool {
	return f == FormatSwiss || f == FormatHybridSwissElimination
}

// UsesElimination reports whether the format includes an elimination phase.
func (f TournamentFormat) UsesElimination() bool {
	return f == FormatSingleElimination || f == FormatDoubleElimination || f == FormatHybridSwissElimination
}

// IsDoubleElimination reports whether losers drop into a second bracket.
func (f TournamentFormat) IsDoubleElimination() bool {
	return f == FormatDoubleElimination
}
