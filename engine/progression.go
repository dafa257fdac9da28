package engine

import (
	"fmt"

	"github.com/nrc-robotics/tournament-system/models"
)

// Оркестратор фаз: собственных алгоритмов не содержит, только
// последовательность фаз формата и защиту от повторного входа в уже
// пройденную фазу.

var phaseIndex = map[models.TournamentStatus]int{
	models.StatusSetup:        0,
	models.StatusRegistration: 1,
	models.StatusSwissRounds:  2,
	models.StatusElimination:  3,
	models.StatusCompleted:    4,
}

// PhasePath возвращает последовательность фаз для формата турнира.
func PhasePath(format models.TournamentFormat) []models.TournamentStatus {
	path := []models.TournamentStatus{models.StatusSetup, models.StatusRegistration}
	if format.UsesSwiss() {
		path = append(path, models.StatusSwissRounds)
	}
	if format.UsesElimination() {
		path = append(path, models.StatusElimination)
	}
	return append(path, models.StatusCompleted)
}

// NextPhase — фаза, следующая за текущей в пути формата.
func NextPhase(t *models.Tournament) (models.TournamentStatus, error) {
	path := PhasePath(t.Format)
	for i, s := range path {
		if s == t.Status {
			if i+1 >= len(path) {
				return "", fmt.Errorf("%w: tournament %d is already %q", ErrPhaseAlreadyAdvanced, t.ID, t.Status)
			}
			return path[i+1], nil
		}
	}
	return "", fmt.Errorf("%w: tournament %d is %q", ErrPhaseAlreadyAdvanced, t.ID, t.Status)
}

// AdvancePhase переводит турнир в фазу next. Переход назад или повторный
// вход в текущую фазу отклоняется.
func AdvancePhase(t *models.Tournament, next models.TournamentStatus) error {
	if next == models.StatusCancelled {
		if t.Status == models.StatusCompleted || t.Status == models.StatusCancelled {
			return fmt.Errorf("%w: tournament %d is %q", ErrPhaseAlreadyAdvanced, t.ID, t.Status)
		}
		t.Status = models.StatusCancelled
		return nil
	}

	cur, okCur := phaseIndex[t.Status]
	nxt, okNext := phaseIndex[next]
	if !okCur || !okNext || nxt <= cur {
		return fmt.Errorf("%w: tournament %d cannot go %q → %q", ErrPhaseAlreadyAdvanced, t.ID, t.Status, next)
	}
	for _, s := range PhasePath(t.Format) {
		if s == next {
			t.Status = next
			return nil
		}
	}
	return fmt.Errorf("phase %q is not part of format %q", next, t.Format)
}

// SeedsFromStandings упорядочивает состав по итоговой таблице
// швейцарской фазы — вход для построения олимпийской сетки.
func SeedsFromStandings(standings []models.StandingEntry, teams []*models.Team) []*models.Team {
	byID := make(map[int]*models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}
	out := make([]*models.Team, 0, len(standings))
	for _, entry := range standings {
		if t, ok := byID[entry.TeamID]; ok {
			out = append(out, t)
		}
	}
	return out
}
