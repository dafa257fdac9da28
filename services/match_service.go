package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nrc-robotics/tournament-system/engine"
	"github.com/nrc-robotics/tournament-system/live"
	"github.com/nrc-robotics/tournament-system/models"
	"github.com/nrc-robotics/tournament-system/repositories"
)

type CompleteMatchInput struct {
	WinnerID int `json:"winner_id"`
	ScoreA   int `json:"score_a"`
	ScoreB   int `json:"score_b"`
}

type MatchService interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, error)

	Start(ctx context.Context, matchID int) (*models.Match, error)

	// Complete фиксирует результат боя. Для матча олимпийской сетки
	// победитель и проигравший сразу продвигаются по арене, вновь
	// укомплектованные слоты переводятся в scheduled.
	Complete(ctx context.Context, matchID int, input CompleteMatchInput) (*models.Match, error)

	Cancel(ctx context.Context, matchID int, reason string) (*models.Match, error)
}

type matchService struct {
	db             *sql.DB
	matchRepo      repositories.MatchRepository
	teamRepo       repositories.TeamRepository
	tournamentRepo repositories.TournamentRepository
	hub            *live.Hub
	locks          *TournamentLocks
	logger         *slog.Logger
}

func NewMatchService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	teamRepo repositories.TeamRepository,
	tournamentRepo repositories.TournamentRepository,
	hub *live.Hub,
	locks *TournamentLocks,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:             db,
		matchRepo:      matchRepo,
		teamRepo:       teamRepo,
		tournamentRepo: tournamentRepo,
		hub:            hub,
		locks:          locks,
		logger:         logger,
	}
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, error) {
	return s.matchRepo.ListByTournament(ctx, tournamentID, filter)
}

func (s *matchService) Start(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(match.TournamentID)
	defer unlock()

	expected := match.Status
	if err := engine.StartMatch(match, time.Now().UTC()); err != nil {
		return nil, mapEngineError(err)
	}
	if err := s.matchRepo.UpdateStatus(ctx, nil, match, expected); err != nil {
		if errors.Is(err, repositories.ErrMatchStatusChanged) {
			return nil, ErrMatchAlreadyReported
		}
		return nil, err
	}

	s.logger.Info("match started",
		slog.Int("match_id", match.ID),
		slog.Int("tournament_id", match.TournamentID),
	)
	s.broadcast(match.TournamentID, live.EventMatchStarted, match)
	return match, nil
}

func (s *matchService) Complete(ctx context.Context, matchID int, input CompleteMatchInput) (*models.Match, error) {
	match, err := s.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(match.TournamentID)
	defer unlock()

	expected := match.Status
	if err := engine.CompleteMatch(match, input.WinnerID, input.ScoreA, input.ScoreB, time.Now().UTC()); err != nil {
		return nil, mapEngineError(err)
	}
	if err := s.matchRepo.UpdateStatus(ctx, nil, match, expected); err != nil {
		if errors.Is(err, repositories.ErrMatchStatusChanged) {
			return nil, ErrMatchAlreadyReported
		}
		return nil, err
	}

	s.logger.Info("match completed",
		slog.Int("match_id", match.ID),
		slog.Int("tournament_id", match.TournamentID),
		slog.Int("winner_id", input.WinnerID),
	)
	s.broadcast(match.TournamentID, live.EventMatchCompleted, match)

	switch match.Kind {
	case models.MatchKindElimination:
		if err := s.advanceBracket(ctx, match); err != nil {
			return nil, err
		}
	case models.MatchKindSwiss:
		s.broadcastStandings(ctx, match.TournamentID)
	}
	return match, nil
}

func (s *matchService) Cancel(ctx context.Context, matchID int, reason string) (*models.Match, error) {
	match, err := s.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(match.TournamentID)
	defer unlock()

	expected := match.Status
	if err := engine.CancelMatch(match, strings.TrimSpace(reason), time.Now().UTC()); err != nil {
		return nil, mapEngineError(err)
	}
	if err := s.matchRepo.UpdateStatus(ctx, nil, match, expected); err != nil {
		if errors.Is(err, repositories.ErrMatchStatusChanged) {
			return nil, ErrMatchAlreadyReported
		}
		return nil, err
	}

	s.logger.Info("match cancelled",
		slog.Int("match_id", match.ID),
		slog.Int("tournament_id", match.TournamentID),
		slog.String("reason", reason),
	)
	s.broadcast(match.TournamentID, live.EventMatchCancelled, match)
	return match, nil
}

// advanceBracket перечитывает арену с уже записанным результатом и
// сохраняет всё, что изменило продвижение: заполненные слоты и, при
// необходимости, переигровку гранд-финала.
func (s *matchService) advanceBracket(ctx context.Context, match *models.Match) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, match.TournamentID)
	if err != nil {
		return err
	}

	kind := models.MatchKindElimination
	matches, err := s.matchRepo.ListByTournament(ctx, match.TournamentID, repositories.MatchFilter{Kind: &kind})
	if err != nil {
		return err
	}
	arena, err := engine.LoadElimination(match.TournamentID, tournament.Format.IsDoubleElimination(), matches)
	if err != nil {
		return mapEngineError(err)
	}

	changed, err := arena.Advance(match, time.Now().UTC())
	if err != nil {
		return mapEngineError(err)
	}
	if len(changed) == 0 {
		s.maybeFinishBracket(arena)
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range changed {
		if m.ID == 0 {
			err = s.matchRepo.Create(ctx, tx, m)
		} else {
			err = s.matchRepo.UpdateParticipants(ctx, tx, m)
		}
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bracket advancement: %w", err)
	}

	s.broadcast(match.TournamentID, live.EventBracketUpdated, bracketViews(arena))
	s.maybeFinishBracket(arena)
	return nil
}

func (s *matchService) maybeFinishBracket(arena *engine.Elimination) {
	if champion := arena.Champion(); champion != nil {
		s.logger.Info("bracket champion decided",
			slog.Int("tournament_id", arena.TournamentID),
			slog.Int("team_id", *champion),
		)
	}
}

func (s *matchService) broadcastStandings(ctx context.Context, tournamentID int) {
	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		s.logger.Warn("failed to load teams for standings broadcast", slog.Any("error", err))
		return
	}
	kind := models.MatchKindSwiss
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Kind: &kind})
	if err != nil {
		s.logger.Warn("failed to load matches for standings broadcast", slog.Any("error", err))
		return
	}
	standings := engine.ComputeStandings(teams, matches, engine.StandingsOptions{Scoring: engine.DefaultScoring()})
	s.broadcast(tournamentID, live.EventStandingsUpdated, standings)
}

func (s *matchService) broadcast(tournamentID int, eventType live.EventType, payload interface{}) {
	if s.hub == nil {
		return
	}
	event := live.NewEvent(eventType, tournamentID, payload)
	s.hub.BroadcastToRoom(live.RoomForTournament(tournamentID), event)
}
