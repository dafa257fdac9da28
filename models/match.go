package models

import "time"

// MatchKind различает матчи швейцарской фазы и олимпийской сетки.
// Вид задаётся явно, без утиной типизации по наличию полей.
type MatchKind string

const (
	MatchKindSwiss       MatchKind = "swiss"
	MatchKindElimination MatchKind = "elimination"
)

type MatchStatus string

const (
	// MatchPending — слот сетки, у которого ещё не известны оба участника.
	// Матч в этом статусе нельзя начать; в scheduled он переводится
	// продвижением сетки, когда завершатся оба подводящих матча.
	MatchPending      MatchStatus = "pending"
	MatchScheduled    MatchStatus = "scheduled"
	MatchInProgress   MatchStatus = "in_progress"
	MatchCompleted    MatchStatus = "completed"
	MatchByeCompleted MatchStatus = "bye_completed"
	MatchCancelled    MatchStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s MatchStatus) Terminal() bool {
	return s == MatchCompleted || s == MatchByeCompleted || s == MatchCancelled
}

// BracketKind identifies which elimination bracket a match belongs to.
type BracketKind string

const (
	BracketWinners    BracketKind = "winners"
	BracketLosers     BracketKind = "losers"
	BracketGrandFinal BracketKind = "grand_final"
)

// Match представляет один бой между двумя командами (или bye-проход).
// Slot — позиция внутри раунда; для сетки слот раунда r+1 равен slot/2.
type Match struct {
	ID           int          `json:"id" db:"id"`
	TournamentID int          `json:"tournament_id" db:"tournament_id"`
	Kind         MatchKind    `json:"kind" db:"kind"`
	Bracket      *BracketKind `json:"bracket,omitempty" db:"bracket"`
	Round        int          `json:"round" db:"round"`
	Slot         int          `json:"slot" db:"slot"`
	TeamAID      *int         `json:"team_a_id,omitempty" db:"team_a_id"`
	TeamBID      *int         `json:"team_b_id,omitempty" db:"team_b_id"`
	Status       MatchStatus  `json:"status" db:"status"`
	WinnerID     *int         `json:"winner_id,omitempty" db:"winner_id"`
	ScoreA       *int         `json:"score_a,omitempty" db:"score_a"`
	ScoreB       *int         `json:"score_b,omitempty" db:"score_b"`
	ForcedRepeat bool         `json:"forced_repeat,omitempty" db:"forced_repeat"`
	Seq          int          `json:"seq" db:"seq"`
	StartedAt    *time.Time   `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CancelReason *string      `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`

	TeamA *Team `json:"team_a,omitempty" db:"-"`
	TeamB *Team `json:"team_b,omitempty" db:"-"`
}

// IsBye reports whether the match is an automatic win (a single
// participant with no opponent).
func (m *Match) IsBye() bool {
	return m.TeamAID != nil && m.TeamBID == nil && m.Status == MatchByeCompleted
}

// HasTeam reports whether the given team takes part in this match.
func (m *Match) HasTeam(teamID int) bool {
	if m.TeamAID != nil && *m.TeamAID == teamID {
		return true
	}
	return m.TeamBID != nil && *m.TeamBID == teamID
}

// Opponent returns the id of the other participant, or nil for a bye
// or when the given team does not play in this match.
func (m *Match) Opponent(teamID int) *int {
	switch {
	case m.TeamAID != nil && *m.TeamAID == teamID:
		return m.TeamBID
	case m.TeamBID != nil && *m.TeamBID == teamID:
		return m.TeamAID
	}
	return nil
}
