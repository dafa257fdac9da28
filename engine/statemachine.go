package engine

import (
	"fmt"
	"time"

	"github.com/nrc-robotics/tournament-system/models"
)

// Машина состояний матча:
//
//	scheduled → in_progress → completed
//	scheduled → bye_completed            (автоматически, терминально)
//	scheduled | in_progress → cancelled  (административно, терминально)
//
// Результаты неизменяемы: повторное завершение возвращает ошибку,
// а не молча перезаписывает счёт.

// StartMatch переводит матч из scheduled в in_progress и фиксирует
// время начала.
func StartMatch(m *models.Match, now time.Time) error {
	if m.Status != models.MatchScheduled {
		return fmt.Errorf("%w: cannot start match from status %q", ErrInvalidTransition, m.Status)
	}
	m.Status = models.MatchInProgress
	m.StartedAt = &now
	return nil
}

// CompleteMatch записывает результат матча, находящегося in_progress.
// Победитель обязан быть одним из участников; равный счёт при явно
// объявленном победителе допустим (судейское решение).
func CompleteMatch(m *models.Match, winnerID, scoreA, scoreB int, now time.Time) error {
	switch m.Status {
	case models.MatchCompleted, models.MatchByeCompleted:
		return fmt.Errorf("%w: match %d", ErrAlreadyCompleted, m.ID)
	case models.MatchInProgress:
	default:
		return fmt.Errorf("%w: cannot complete match from status %q", ErrInvalidTransition, m.Status)
	}
	if scoreA < 0 || scoreB < 0 {
		return fmt.Errorf("%w: got %d and %d", ErrNegativeScore, scoreA, scoreB)
	}
	if !m.HasTeam(winnerID) {
		return fmt.Errorf("%w: team %d", ErrWinnerNotParticipant, winnerID)
	}
	// При неравном счёте победитель обязан быть стороной с большим счётом.
	if scoreA > scoreB && (m.TeamAID == nil || *m.TeamAID != winnerID) {
		return fmt.Errorf("%w: team %d did not score the higher result", ErrWinnerNotParticipant, winnerID)
	}
	if scoreB > scoreA && (m.TeamBID == nil || *m.TeamBID != winnerID) {
		return fmt.Errorf("%w: team %d did not score the higher result", ErrWinnerNotParticipant, winnerID)
	}

	m.WinnerID = &winnerID
	m.ScoreA = &scoreA
	m.ScoreB = &scoreB
	m.Status = models.MatchCompleted
	m.CompletedAt = &now
	return nil
}

// CancelMatch терминально отменяет матч из scheduled или in_progress.
// Bye-матчи не отменяются — они рождаются уже завершёнными.
func CancelMatch(m *models.Match, reason string, now time.Time) error {
	switch m.Status {
	case models.MatchScheduled, models.MatchInProgress:
	default:
		return fmt.Errorf("%w: cannot cancel match from status %q", ErrInvalidTransition, m.Status)
	}
	m.Status = models.MatchCancelled
	m.CancelReason = &reason
	m.CompletedAt = &now
	return nil
}

// PromoteMatch переводит слот сетки из pending в scheduled, когда оба
// участника известны. Используется только продвижением сетки.
func PromoteMatch(m *models.Match) error {
	if m.Status != models.MatchPending {
		return fmt.Errorf("%w: cannot promote match from status %q", ErrInvalidTransition, m.Status)
	}
	if m.TeamAID == nil || m.TeamBID == nil {
		return fmt.Errorf("%w: both participants must be known to promote", ErrInvalidTransition)
	}
	m.Status = models.MatchScheduled
	return nil
}

// NewByeMatch создаёт bye-матч: единственный участник сразу объявлен
// победителем, матч не стартует и не отменяется.
func NewByeMatch(tournamentID int, kind models.MatchKind, bracket *models.BracketKind, round, slot, teamID, seq int, now time.Time) *models.Match {
	winner := teamID
	return &models.Match{
		TournamentID: tournamentID,
		Kind:         kind,
		Bracket:      bracket,
		Round:        round,
		Slot:         slot,
		TeamAID:      &winner,
		TeamBID:      nil,
		Status:       models.MatchByeCompleted,
		WinnerID:     &winner,
		Seq:          seq,
		CompletedAt:  &now,
		CreatedAt:    now,
	}
}
