package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrc-robotics/tournament-system/models"
)

func scheduledMatch(a, b int) *models.Match {
	return &models.Match{
		ID:           1,
		TournamentID: 10,
		Kind:         models.MatchKindSwiss,
		Round:        1,
		TeamAID:      &a,
		TeamBID:      &b,
		Status:       models.MatchScheduled,
	}
}

func TestStartMatch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := scheduledMatch(1, 2)

	require.NoError(t, StartMatch(m, now))
	assert.Equal(t, models.MatchInProgress, m.Status)
	require.NotNil(t, m.StartedAt)
	assert.Equal(t, now, *m.StartedAt)

	// Повторный старт недопустим.
	err := StartMatch(m, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteMatch(t *testing.T) {
	now := time.Now()
	m := scheduledMatch(1, 2)

	// Завершение из scheduled запрещено.
	assert.ErrorIs(t, CompleteMatch(m, 1, 3, 0, now), ErrInvalidTransition)

	require.NoError(t, StartMatch(m, now))
	require.NoError(t, CompleteMatch(m, 1, 3, 1, now))
	assert.Equal(t, models.MatchCompleted, m.Status)
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, 1, *m.WinnerID)
	assert.Equal(t, 3, *m.ScoreA)
	assert.Equal(t, 1, *m.ScoreB)
}

func TestCompleteMatchIdempotency(t *testing.T) {
	now := time.Now()
	m := scheduledMatch(1, 2)
	require.NoError(t, StartMatch(m, now))
	require.NoError(t, CompleteMatch(m, 2, 0, 5, now))

	// Результат заморожен: второй вызов с теми же аргументами — ошибка,
	// а не тихая перезапись.
	err := CompleteMatch(m, 2, 0, 5, now)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, 2, *m.WinnerID)
}

func TestCompleteMatchValidation(t *testing.T) {
	now := time.Now()

	m := scheduledMatch(1, 2)
	require.NoError(t, StartMatch(m, now))
	assert.ErrorIs(t, CompleteMatch(m, 99, 1, 0, now), ErrWinnerNotParticipant)
	assert.ErrorIs(t, CompleteMatch(m, 1, -1, 0, now), ErrNegativeScore)

	// Победитель обязан соответствовать счёту, когда счёт не равный.
	assert.ErrorIs(t, CompleteMatch(m, 2, 3, 1, now), ErrWinnerNotParticipant)

	// Равный счёт с объявленным победителем допустим (решение судей).
	require.NoError(t, CompleteMatch(m, 2, 2, 2, now))
}

func TestCancelMatch(t *testing.T) {
	now := time.Now()

	m := scheduledMatch(1, 2)
	require.NoError(t, CancelMatch(m, "robot failed tech inspection", now))
	assert.Equal(t, models.MatchCancelled, m.Status)
	require.NotNil(t, m.CancelReason)

	// Отмена терминальна.
	assert.ErrorIs(t, CancelMatch(m, "again", now), ErrInvalidTransition)

	inProgress := scheduledMatch(3, 4)
	require.NoError(t, StartMatch(inProgress, now))
	require.NoError(t, CancelMatch(inProgress, "arena hazard fault", now))
}

func TestByeMatch(t *testing.T) {
	now := time.Now()
	m := NewByeMatch(10, models.MatchKindSwiss, nil, 1, 2, 7, 0, now)

	assert.True(t, m.IsBye())
	assert.Equal(t, models.MatchByeCompleted, m.Status)
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, 7, *m.WinnerID)

	// Bye-матч не стартует и не отменяется.
	assert.ErrorIs(t, StartMatch(m, now), ErrInvalidTransition)
	assert.ErrorIs(t, CancelMatch(m, "nope", now), ErrInvalidTransition)
	assert.ErrorIs(t, CompleteMatch(m, 7, 1, 0, now), ErrAlreadyCompleted)
}

func TestPromoteMatch(t *testing.T) {
	a, b := 1, 2
	m := &models.Match{Status: models.MatchPending, TeamAID: &a}

	// Без второго участника слот не продвигается.
	assert.ErrorIs(t, PromoteMatch(m), ErrInvalidTransition)

	m.TeamBID = &b
	require.NoError(t, PromoteMatch(m))
	assert.Equal(t, models.MatchScheduled, m.Status)
}
