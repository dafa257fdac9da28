package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrc-robotics/tournament-system/models"
	"github.com/nrc-robotics/tournament-system/repositories"
)

// Стабы покрывают только методы, до которых доходят сценарии теста.
// Остальные методы встроенного интерфейса остаются nil и падают при
// неожиданном вызове.

type stubTournamentRepo struct {
	repositories.TournamentRepository
	tournament *models.Tournament
}

func (r *stubTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	return r.tournament, nil
}

type stubTeamRepo struct {
	repositories.TeamRepository
	teams []*models.Team
}

func (r *stubTeamRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Team, error) {
	return r.teams, nil
}

type stubMatchRepo struct {
	repositories.MatchRepository
	matches []*models.Match

	// Запрошенные виды матчей в порядке вызовов.
	requestedKinds []models.MatchKind
}

func (r *stubMatchRepo) ListByTournament(ctx context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, error) {
	if filter.Kind != nil {
		r.requestedKinds = append(r.requestedKinds, *filter.Kind)
	}
	var out []*models.Match
	for _, m := range r.matches {
		if filter.Kind != nil && m.Kind != *filter.Kind {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func newBracketServiceForTest(tournament *models.Tournament, teams []*models.Team, matchRepo *stubMatchRepo) BracketService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBracketService(
		nil,
		&stubTournamentRepo{tournament: tournament},
		&stubTeamRepo{teams: teams},
		matchRepo,
		nil,
		nil,
		NewTournamentLocks(),
		logger,
	)
}

func testTeams() []*models.Team {
	return []*models.Team{
		{ID: 1, TournamentID: 10, Name: "Иглобрюх"},
		{ID: 2, TournamentID: 10, Name: "Циркулярка"},
	}
}

func terminalMatch(kind models.MatchKind, winnerID int) *models.Match {
	teamA, teamB := 1, 2
	scoreA, scoreB := 0, 3
	if winnerID == teamA {
		scoreA, scoreB = 3, 0
	}
	return &models.Match{
		TournamentID: 10,
		Kind:         kind,
		Round:        1,
		TeamAID:      &teamA,
		TeamBID:      &teamB,
		Status:       models.MatchCompleted,
		WinnerID:     &winnerID,
		ScoreA:       &scoreA,
		ScoreB:       &scoreB,
	}
}

func TestGetStandingsIgnoresBracketResults(t *testing.T) {
	// Гибрид в фазе сетки: таблица строится только по швейцарской
	// истории, победа в сетке не добавляет очков.
	tournament := &models.Tournament{
		ID:     10,
		Format: models.FormatHybridSwissElimination,
		Status: models.StatusElimination,
	}
	matchRepo := &stubMatchRepo{matches: []*models.Match{
		terminalMatch(models.MatchKindSwiss, 1),
		terminalMatch(models.MatchKindElimination, 2),
	}}
	svc := newBracketServiceForTest(tournament, testTeams(), matchRepo)

	standings, err := svc.GetStandings(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []models.MatchKind{models.MatchKindSwiss}, matchRepo.requestedKinds)

	require.Len(t, standings, 2)
	assert.Equal(t, 1, standings[0].TeamID)
	assert.Equal(t, 1, standings[0].Wins)
	assert.Equal(t, 0, standings[1].Wins)
}

func TestGetStandingsPureEliminationFormat(t *testing.T) {
	// Чисто олимпийский формат: швейцарской истории нет, таблица
	// считается по матчам сетки.
	tournament := &models.Tournament{
		ID:     10,
		Format: models.FormatSingleElimination,
		Status: models.StatusElimination,
	}
	matchRepo := &stubMatchRepo{matches: []*models.Match{
		terminalMatch(models.MatchKindElimination, 2),
	}}
	svc := newBracketServiceForTest(tournament, testTeams(), matchRepo)

	standings, err := svc.GetStandings(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []models.MatchKind{models.MatchKindElimination}, matchRepo.requestedKinds)

	require.Len(t, standings, 2)
	assert.Equal(t, 2, standings[0].TeamID)
	assert.Equal(t, 1, standings[0].Wins)
}

func TestGenerateEliminationRejectsExistingBracket(t *testing.T) {
	tournament := &models.Tournament{
		ID:     10,
		Format: models.FormatSingleElimination,
		Status: models.StatusElimination,
	}
	matchRepo := &stubMatchRepo{matches: []*models.Match{
		terminalMatch(models.MatchKindElimination, 1),
	}}
	svc := newBracketServiceForTest(tournament, testTeams(), matchRepo)

	_, err := svc.GenerateElimination(context.Background(), 10)
	assert.ErrorIs(t, err, ErrBracketAlreadyBuilt)
}
