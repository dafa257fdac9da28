package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrc-robotics/tournament-system/models"
)

func TestPhasePathPerFormat(t *testing.T) {
	assert.Equal(t, []models.TournamentStatus{
		models.StatusSetup, models.StatusRegistration,
		models.StatusSwissRounds, models.StatusElimination, models.StatusCompleted,
	}, PhasePath(models.FormatHybridSwissElimination))

	assert.Equal(t, []models.TournamentStatus{
		models.StatusSetup, models.StatusRegistration,
		models.StatusSwissRounds, models.StatusCompleted,
	}, PhasePath(models.FormatSwiss))

	assert.Equal(t, []models.TournamentStatus{
		models.StatusSetup, models.StatusRegistration,
		models.StatusElimination, models.StatusCompleted,
	}, PhasePath(models.FormatSingleElimination))
	assert.Equal(t, PhasePath(models.FormatSingleElimination), PhasePath(models.FormatDoubleElimination))
}

func TestNextPhase(t *testing.T) {
	tour := &models.Tournament{ID: 1, Format: models.FormatHybridSwissElimination, Status: models.StatusRegistration}

	next, err := NextPhase(tour)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSwissRounds, next)

	// Формат без швейцарской фазы перескакивает сразу к сетке.
	tour.Format = models.FormatSingleElimination
	next, err = NextPhase(tour)
	require.NoError(t, err)
	assert.Equal(t, models.StatusElimination, next)

	tour.Status = models.StatusCompleted
	_, err = NextPhase(tour)
	assert.ErrorIs(t, err, ErrPhaseAlreadyAdvanced)
}

func TestAdvancePhase(t *testing.T) {
	tour := &models.Tournament{ID: 1, Format: models.FormatHybridSwissElimination, Status: models.StatusSwissRounds}

	require.NoError(t, AdvancePhase(tour, models.StatusElimination))
	assert.Equal(t, models.StatusElimination, tour.Status)

	// Назад и повторно — нельзя.
	assert.ErrorIs(t, AdvancePhase(tour, models.StatusElimination), ErrPhaseAlreadyAdvanced)
	assert.ErrorIs(t, AdvancePhase(tour, models.StatusSwissRounds), ErrPhaseAlreadyAdvanced)

	// Фаза чужого формата отклоняется.
	swissOnly := &models.Tournament{ID: 2, Format: models.FormatSwiss, Status: models.StatusRegistration}
	assert.Error(t, AdvancePhase(swissOnly, models.StatusElimination))
}

func TestAdvancePhaseCancellation(t *testing.T) {
	tour := &models.Tournament{ID: 1, Format: models.FormatHybridSwissElimination, Status: models.StatusSwissRounds}

	require.NoError(t, AdvancePhase(tour, models.StatusCancelled))
	assert.Equal(t, models.StatusCancelled, tour.Status)

	// Отменённый и завершённый турниры не отменяются повторно.
	assert.ErrorIs(t, AdvancePhase(tour, models.StatusCancelled), ErrPhaseAlreadyAdvanced)

	done := &models.Tournament{ID: 2, Format: models.FormatSwiss, Status: models.StatusCompleted}
	assert.ErrorIs(t, AdvancePhase(done, models.StatusCancelled), ErrPhaseAlreadyAdvanced)
}

func TestSeedsFromStandings(t *testing.T) {
	teams := testTeams(4)
	matches := []*models.Match{
		completed(1, 2, 1),
		completed(3, 4, 3),
		completed(1, 3, 1),
		completed(4, 2, 4),
	}
	standings := ComputeStandings(teams, matches, StandingsOptions{Scoring: DefaultScoring()})

	seeds := SeedsFromStandings(standings, teams)
	require.Len(t, seeds, 4)
	assert.Equal(t, []int{1, 3, 4, 2}, []int{seeds[0].ID, seeds[1].ID, seeds[2].ID, seeds[3].ID})
}
