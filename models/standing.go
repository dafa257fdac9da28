package models

// StandingEntry — строка таблицы результатов. Пересчитывается целиком
// из истории матчей при каждом запросе, никогда не мутируется на месте.
type StandingEntry struct {
	TeamID        int    `json:"team_id"`
	TeamName      string `json:"team_name,omitempty"`
	Rank          int    `json:"rank"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Ties          int    `json:"ties"`
	Byes          int    `json:"byes"`
	Points        int    `json:"points"`
	TieBreak      int    `json:"tie_break"`
	MatchesPlayed int    `json:"matches_played"`
}
