package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/nrc-robotics/tournament-system/models"
)

var validFormats = map[models.TournamentFormat]bool{
	models.FormatSwiss:                  true,
	models.FormatSingleElimination:      true,
	models.FormatDoubleElimination:      true,
	models.FormatHybridSwissElimination: true,
}

func validateFormat(format models.TournamentFormat) error {
	if !validFormats[format] {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	return nil
}

func validateTournamentDates(start, end *time.Time) error {
	if start == nil || end == nil {
		return nil
	}
	if !start.Before(*end) {
		return fmt.Errorf("%w: start %s, end %s", ErrInvalidDateRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

// TournamentLocks сериализует мутации одного турнира внутри процесса:
// генерация тура, продвижение сетки и смена фазы не должны
// перемешиваться. Один экземпляр разделяется всеми сервисами, которые
// мутируют турнир. Гонки между процессами отсекает CAS на уровне базы.
type TournamentLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewTournamentLocks() *TournamentLocks {
	return &TournamentLocks{locks: make(map[int]*sync.Mutex)}
}

func (l *TournamentLocks) Lock(tournamentID int) func() {
	l.mu.Lock()
	m, ok := l.locks[tournamentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[tournamentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
