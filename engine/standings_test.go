package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrc-robotics/tournament-system/models"
)

func testTeams(n int) []*models.Team {
	teams := make([]*models.Team, 0, n)
	for i := 1; i <= n; i++ {
		teams = append(teams, &models.Team{ID: i, Name: string(rune('A' + i - 1))})
	}
	return teams
}

// completed строит завершённый матч; winnerID == 0 означает ничью.
func completed(a, b, winnerID int) *models.Match {
	m := &models.Match{
		Kind:    models.MatchKindSwiss,
		TeamAID: &a,
		TeamBID: &b,
		Status:  models.MatchCompleted,
	}
	if winnerID != 0 {
		m.WinnerID = &winnerID
	}
	return m
}

func TestComputeStandingsBasic(t *testing.T) {
	teams := testTeams(4)
	matches := []*models.Match{
		completed(1, 2, 1), // тур 1
		completed(3, 4, 3),
		completed(1, 3, 1), // тур 2
		completed(4, 2, 4),
	}

	standings := ComputeStandings(teams, matches, StandingsOptions{Scoring: DefaultScoring()})
	require.Len(t, standings, 4)

	// 1: 6 очков; 3 и 4 по 3; Бухгольц разводит: соперники 3 набрали
	// 9 очков, соперники 4 — только 3.
	assert.Equal(t, []int{1, 3, 4, 2}, []int{
		standings[0].TeamID, standings[1].TeamID, standings[2].TeamID, standings[3].TeamID,
	})
	assert.Equal(t, []int{1, 2, 3, 4}, []int{
		standings[0].Rank, standings[1].Rank, standings[2].Rank, standings[3].Rank,
	})

	assert.Equal(t, 6, standings[0].Points)
	assert.Equal(t, 2, standings[0].Wins)
	assert.Equal(t, 9, standings[1].TieBreak)
	assert.Equal(t, 3, standings[2].TieBreak)
	assert.Equal(t, 2, standings[3].MatchesPlayed)
}

func TestComputeStandingsSharedRanks(t *testing.T) {
	teams := testTeams(4)
	// 1 и 2 неразличимы по всем тай-брейкам, как и 3 с 4.
	matches := []*models.Match{
		completed(1, 3, 1),
		completed(2, 4, 2),
	}

	standings := ComputeStandings(teams, matches, StandingsOptions{Scoring: DefaultScoring()})
	assert.Equal(t, []int{1, 1, 3, 3}, []int{
		standings[0].Rank, standings[1].Rank, standings[2].Rank, standings[3].Rank,
	})

	strict := ComputeStandings(teams, matches, StandingsOptions{
		Scoring:     DefaultScoring(),
		StrictRanks: true,
	})
	assert.Equal(t, []int{1, 2, 3, 4}, []int{
		strict[0].Rank, strict[1].Rank, strict[2].Rank, strict[3].Rank,
	})
}

func TestComputeStandingsByeIsWin(t *testing.T) {
	teams := testTeams(3)
	now := time.Now()
	matches := []*models.Match{
		completed(1, 2, 1),
		NewByeMatch(10, models.MatchKindSwiss, nil, 1, 1, 3, 0, now),
	}

	standings := ComputeStandings(teams, matches, StandingsOptions{Scoring: DefaultScoring()})
	byID := make(map[int]models.StandingEntry)
	for _, e := range standings {
		byID[e.TeamID] = e
	}

	assert.Equal(t, 3, byID[3].Points)
	assert.Equal(t, 1, byID[3].Wins)
	assert.Equal(t, 1, byID[3].Byes)
	// Bye не даёт соперника и не участвует в Бухгольце.
	assert.Equal(t, 0, byID[3].TieBreak)
}

func TestComputeStandingsTies(t *testing.T) {
	teams := testTeams(2)
	matches := []*models.Match{completed(1, 2, 0)}

	standings := ComputeStandings(teams, matches, StandingsOptions{Scoring: DefaultScoring()})
	assert.Equal(t, 1, standings[0].Points)
	assert.Equal(t, 1, standings[1].Points)
	assert.Equal(t, 1, standings[0].Ties)
	assert.Equal(t, []int{1, 1}, []int{standings[0].Rank, standings[1].Rank})
}

func TestComputeStandingsHeadToHead(t *testing.T) {
	seedA, seedB := 2, 1
	teams := []*models.Team{
		{ID: 1, Name: "A", Seed: &seedA},
		{ID: 2, Name: "B", Seed: &seedB},
		{ID: 3, Name: "C"},
	}
	// У 1 и 2 по 6 очков и равный Бухгольц (18), но личные встречи
	// 2:1 в пользу команды 1: она выше, несмотря на худший посев.
	matches := []*models.Match{
		completed(1, 2, 1),
		completed(2, 1, 2),
		completed(1, 2, 1),
		completed(2, 3, 2),
	}

	standings := ComputeStandings(teams, matches, StandingsOptions{Scoring: DefaultScoring()})
	require.Equal(t, 1, standings[0].TeamID)
	assert.Equal(t, 18, standings[0].TieBreak)
	assert.Equal(t, 18, standings[1].TieBreak)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 2, standings[1].Rank)
}

func TestComputeStandingsDeterministic(t *testing.T) {
	teams := testTeams(6)
	matches := []*models.Match{
		completed(1, 4, 1),
		completed(2, 5, 5),
		completed(3, 6, 3),
		completed(1, 5, 0),
		completed(3, 2, 3),
		completed(6, 4, 6),
	}

	first := ComputeStandings(teams, matches, StandingsOptions{Scoring: DefaultScoring()})

	// Порядок входного списка команд на результат не влияет.
	reversed := make([]*models.Team, len(teams))
	for i, tm := range teams {
		reversed[len(teams)-1-i] = tm
	}
	for i := 0; i < 20; i++ {
		again := ComputeStandings(reversed, matches, StandingsOptions{Scoring: DefaultScoring()})
		assert.Equal(t, first, again)
	}
}
