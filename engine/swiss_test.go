package engine

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrc-robotics/tournament-system/models"
)

func seededTeams(n int) []*models.Team {
	teams := make([]*models.Team, 0, n)
	for i := 1; i <= n; i++ {
		seed := i
		teams = append(teams, &models.Team{ID: i, Name: fmt.Sprintf("team-%d", i), Seed: &seed})
	}
	return teams
}

// completedSwiss — сыгранный матч тура round для истории пар.
func completedSwiss(round, a, b, winnerID int) *models.Match {
	m := completed(a, b, winnerID)
	m.Round = round
	return m
}

func swissBye(round, teamID int) *models.Match {
	return NewByeMatch(10, models.MatchKindSwiss, nil, round, 99, teamID, 0, time.Now())
}

func swissOpts() SwissOptions {
	return SwissOptions{Scoring: DefaultScoring(), Now: time.Now()}
}

// pairSet собирает пары тура в множество для сравнения без учёта
// порядка слотов и сторон.
func pairSet(t *testing.T, round *models.SwissRound) map[pairKey]bool {
	t.Helper()
	out := make(map[pairKey]bool)
	for _, m := range round.Matches {
		if !m.IsBye() {
			require.NotNil(t, m.TeamAID)
			require.NotNil(t, m.TeamBID)
			out[keyFor(*m.TeamAID, *m.TeamBID)] = true
		}
	}
	return out
}

func TestFirstRoundSeededSplit(t *testing.T) {
	// 5 команд: две пары плюс один bye нижней строке посева.
	pairing, err := NextSwissRound(10, seededTeams(5), nil, 1, swissOpts())
	require.NoError(t, err)
	require.Len(t, pairing.Round.Matches, 3)
	assert.Empty(t, pairing.ForcedRepeats)

	// Рассечение пополам: 1-я строка посева против середины списка.
	pairs := pairSet(t, pairing.Round)
	assert.True(t, pairs[keyFor(1, 3)])
	assert.True(t, pairs[keyFor(2, 4)])

	bye := pairing.Round.Matches[2]
	assert.True(t, bye.IsBye())
	assert.Equal(t, 5, *bye.WinnerID)
	assert.Equal(t, 2, bye.Slot)
}

func TestFirstRoundUnseededKeepsCallerOrder(t *testing.T) {
	teams := []*models.Team{
		{ID: 7, Name: "g"}, {ID: 3, Name: "c"}, {ID: 9, Name: "i"}, {ID: 5, Name: "e"},
	}
	pairing, err := NextSwissRound(10, teams, nil, 1, swissOpts())
	require.NoError(t, err)

	pairs := pairSet(t, pairing.Round)
	assert.True(t, pairs[keyFor(7, 9)])
	assert.True(t, pairs[keyFor(3, 5)])
}

func TestFirstRoundShuffleCoversEveryTeamOnce(t *testing.T) {
	for n := 2; n <= 9; n++ {
		teams := make([]*models.Team, 0, n)
		for i := 1; i <= n; i++ {
			teams = append(teams, &models.Team{ID: i})
		}
		opts := swissOpts()
		opts.Rand = rand.New(rand.NewSource(int64(n)))

		pairing, err := NextSwissRound(10, teams, nil, 1, opts)
		require.NoError(t, err)
		require.Len(t, pairing.Round.Matches, (n+1)/2)

		seen := make(map[int]int)
		for _, m := range pairing.Round.Matches {
			seen[*m.TeamAID]++
			if m.TeamBID != nil {
				seen[*m.TeamBID]++
			}
		}
		require.Len(t, seen, n, "n=%d", n)
		for id, count := range seen {
			assert.Equal(t, 1, count, "team %d appears %d times for n=%d", id, count, n)
		}
	}
}

func TestSecondRoundPairsWithinPointBands(t *testing.T) {
	teams := seededTeams(5)
	history := []*models.Match{
		completedSwiss(1, 1, 3, 1),
		completedSwiss(1, 2, 4, 2),
		swissBye(1, 5),
	}

	pairing, err := NextSwissRound(10, teams, history, 2, swissOpts())
	require.NoError(t, err)
	require.Len(t, pairing.Round.Matches, 3)
	assert.Empty(t, pairing.ForcedRepeats)

	// Никакая пара первого тура не повторяется.
	pairs := pairSet(t, pairing.Round)
	assert.False(t, pairs[keyFor(1, 3)])
	assert.False(t, pairs[keyFor(2, 4)])

	// Победители (1, 2, 5) играют между собой; нижняя из них спускается
	// к победителю нулевой группы.
	assert.True(t, pairs[keyFor(1, 2)])
	assert.True(t, pairs[keyFor(5, 3)])

	// Bye достаётся нижней строке таблицы из ещё не отдыхавших.
	bye := pairing.Round.Matches[2]
	require.True(t, bye.IsBye())
	assert.Equal(t, 4, *bye.WinnerID)
}

func TestByeRotation(t *testing.T) {
	teams := seededTeams(3)
	history := []*models.Match{
		completedSwiss(1, 1, 2, 1),
		swissBye(1, 3),
	}

	pairing, err := NextSwissRound(10, teams, history, 2, swissOpts())
	require.NoError(t, err)

	// 3-я команда уже отдыхала, на этот раз bye уходит нижней строке
	// таблицы — команде 2.
	bye := pairing.Round.Matches[len(pairing.Round.Matches)-1]
	require.True(t, bye.IsBye())
	assert.Equal(t, 2, *bye.WinnerID)

	pairs := pairSet(t, pairing.Round)
	assert.True(t, pairs[keyFor(1, 3)])
}

func TestForcedRepeatWhenUnavoidable(t *testing.T) {
	teams := seededTeams(2)
	history := []*models.Match{completedSwiss(1, 1, 2, 1)}

	pairing, err := NextSwissRound(10, teams, history, 2, swissOpts())
	require.NoError(t, err)
	require.Len(t, pairing.Round.Matches, 1)

	m := pairing.Round.Matches[0]
	assert.True(t, m.ForcedRepeat)
	require.Len(t, pairing.ForcedRepeats, 1)
	assert.Equal(t, keyFor(1, 2), keyFor(pairing.ForcedRepeats[0][0], pairing.ForcedRepeats[0][1]))
}

func TestRepeatAvoidanceAcrossRounds(t *testing.T) {
	// Три тура на шести командах: повторов быть не должно, движку
	// хватает бесповторных разбиений.
	teams := seededTeams(6)
	var history []*models.Match
	played := make(map[pairKey]bool)

	for round := 1; round <= 3; round++ {
		pairing, err := NextSwissRound(10, teams, history, round, swissOpts())
		require.NoError(t, err)
		require.Len(t, pairing.Round.Matches, 3)
		assert.Empty(t, pairing.ForcedRepeats, "round %d", round)

		for _, m := range pairing.Round.Matches {
			key := keyFor(*m.TeamAID, *m.TeamBID)
			assert.False(t, played[key], "round %d repeats pairing %v", round, key)
			played[key] = true

			// Побеждает сторона A: детерминированный сценарий.
			require.NoError(t, StartMatch(m, time.Now()))
			require.NoError(t, CompleteMatch(m, *m.TeamAID, 3, 0, time.Now()))
			history = append(history, m)
		}
	}
}

func TestRoundAlreadyGenerated(t *testing.T) {
	teams := seededTeams(4)
	history := []*models.Match{
		completedSwiss(1, 1, 3, 1),
		completedSwiss(1, 2, 4, 2),
	}

	_, err := NextSwissRound(10, teams, history, 1, swissOpts())
	assert.ErrorIs(t, err, ErrRoundAlreadyGenerated)
}

func TestInsufficientTeams(t *testing.T) {
	_, err := NextSwissRound(10, seededTeams(1), nil, 2, swissOpts())
	assert.ErrorIs(t, err, ErrInsufficientTeams)
}
