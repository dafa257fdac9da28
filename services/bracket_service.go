package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/nrc-robotics/tournament-system/engine"
	"github.com/nrc-robotics/tournament-system/live"
	"github.com/nrc-robotics/tournament-system/models"
	"github.com/nrc-robotics/tournament-system/repositories"
)

type BracketService interface {
	// GenerateSwissRound строит и сохраняет следующий тур швейцарской
	// фазы. Предыдущий тур должен быть полностью сыгран.
	GenerateSwissRound(ctx context.Context, tournamentID int) (*models.SwissRound, error)

	// RegenerateSwissRound пересоздаёт последний сгенерированный тур.
	// Допускается, только пока в туре не зафиксирован ни один результат.
	RegenerateSwissRound(ctx context.Context, tournamentID, number int) (*models.SwissRound, error)

	// GenerateElimination строит олимпийскую сетку. Для гибридного
	// формата посев берётся из итоговой таблицы швейцарской фазы.
	GenerateElimination(ctx context.Context, tournamentID int) ([]*models.Bracket, error)

	GetBracket(ctx context.Context, tournamentID int) ([]*models.Bracket, error)
	GetStandings(ctx context.Context, tournamentID int) ([]models.StandingEntry, error)
	ListRounds(ctx context.Context, tournamentID int) ([]*models.SwissRound, error)
}

type bracketService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	roundRepo      repositories.RoundRepository
	hub            *live.Hub
	locks          *TournamentLocks
	logger         *slog.Logger
}

func NewBracketService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	roundRepo repositories.RoundRepository,
	hub *live.Hub,
	locks *TournamentLocks,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		db:             db,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		roundRepo:      roundRepo,
		hub:            hub,
		locks:          locks,
		logger:         logger,
	}
}

func (s *bracketService) GenerateSwissRound(ctx context.Context, tournamentID int) (*models.SwissRound, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	tournament, err := s.loadTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusSwissRounds {
		return nil, ErrSwissPhaseNotActive
	}

	rounds, err := s.roundRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	number := len(rounds) + 1
	if number > tournament.SwissRounds {
		return nil, fmt.Errorf("%w: all %d swiss rounds are generated", ErrValidationFailed, tournament.SwissRounds)
	}

	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	history, err := s.swissMatches(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	// Следующий тур не генерируется поверх недоигранного.
	for _, m := range history {
		if !m.Status.Terminal() {
			return nil, ErrSwissRoundsIncomplete
		}
	}

	pairing, err := engine.NextSwissRound(tournamentID, teams, history, number, engine.SwissOptions{
		Scoring: engine.DefaultScoring(),
		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		Now:     time.Now().UTC(),
	})
	if err != nil {
		return nil, mapEngineError(err)
	}

	round, err := s.persistRound(ctx, pairing.Round)
	if err != nil {
		return nil, err
	}

	if len(pairing.ForcedRepeats) > 0 {
		s.logger.Warn("swiss round contains forced repeat pairings",
			slog.Int("tournament_id", tournamentID),
			slog.Int("round", number),
			slog.Int("repeats", len(pairing.ForcedRepeats)),
		)
	}
	s.logger.Info("swiss round generated",
		slog.Int("tournament_id", tournamentID),
		slog.Int("round", number),
		slog.Int("matches", len(round.Matches)),
	)
	s.broadcast(tournamentID, live.EventRoundGenerated, round)
	return round, nil
}

func (s *bracketService) RegenerateSwissRound(ctx context.Context, tournamentID, number int) (*models.SwissRound, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	tournament, err := s.loadTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusSwissRounds {
		return nil, ErrSwissPhaseNotActive
	}

	rounds, err := s.roundRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	// Пересоздавать можно только хвостовой тур: более ранние уже
	// повлияли на жеребьёвку последующих.
	if len(rounds) == 0 || rounds[len(rounds)-1].Number != number {
		return nil, fmt.Errorf("%w: only the latest round can be regenerated", ErrValidationFailed)
	}
	old := rounds[len(rounds)-1]

	history, err := s.swissMatches(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	previous := make([]*models.Match, 0, len(history))
	for _, m := range history {
		if m.Round == number {
			// Bye завершается автоматически при генерации и результатом
			// не считается.
			switch m.Status {
			case models.MatchScheduled, models.MatchByeCompleted:
			default:
				return nil, ErrRoundHasResults
			}
			continue
		}
		previous = append(previous, m)
	}

	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	pairing, err := engine.NextSwissRound(tournamentID, teams, previous, number, engine.SwissOptions{
		Scoring: engine.DefaultScoring(),
		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		Now:     time.Now().UTC(),
	})
	if err != nil {
		return nil, mapEngineError(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.matchRepo.DeleteByTournamentAndRound(ctx, tx, tournamentID, models.MatchKindSwiss, number); err != nil {
		return nil, err
	}
	if err := s.roundRepo.Delete(ctx, tx, old.ID); err != nil {
		return nil, err
	}
	if err := s.roundRepo.Create(ctx, tx, pairing.Round); err != nil {
		return nil, err
	}
	if err := s.matchRepo.CreateBatch(ctx, tx, pairing.Round.Matches); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit round regeneration: %w", err)
	}

	s.logger.Info("swiss round regenerated",
		slog.Int("tournament_id", tournamentID),
		slog.Int("round", number),
	)
	s.broadcast(tournamentID, live.EventRoundGenerated, pairing.Round)
	return pairing.Round, nil
}

func (s *bracketService) GenerateElimination(ctx context.Context, tournamentID int) ([]*models.Bracket, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	tournament, err := s.loadTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusElimination {
		return nil, ErrElimPhaseNotActive
	}

	existing, err := s.eliminationMatches(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, mapEngineError(fmt.Errorf("%w: tournament %d", engine.ErrBracketAlreadyExists, tournamentID))
	}

	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	seeds := teams
	if tournament.Format.UsesSwiss() {
		// Гибрид: посев по итогам швейцарской фазы.
		swiss, err := s.swissMatches(ctx, tournamentID)
		if err != nil {
			return nil, err
		}
		standings := engine.ComputeStandings(teams, swiss, engine.StandingsOptions{Scoring: engine.DefaultScoring()})
		seeds = engine.SeedsFromStandings(standings, teams)
	}

	arena, err := engine.BuildElimination(tournamentID, seeds, tournament.Format.IsDoubleElimination(), time.Now().UTC())
	if err != nil {
		return nil, mapEngineError(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.matchRepo.CreateBatch(ctx, tx, arena.AllMatches()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bracket: %w", err)
	}

	views := bracketViews(arena)
	s.logger.Info("elimination bracket generated",
		slog.Int("tournament_id", tournamentID),
		slog.Int("teams", len(seeds)),
		slog.Bool("double", tournament.Format.IsDoubleElimination()),
	)
	s.broadcast(tournamentID, live.EventBracketUpdated, views)
	return views, nil
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) ([]*models.Bracket, error) {
	tournament, err := s.loadTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	matches, err := s.eliminationMatches(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []*models.Bracket{}, nil
	}
	arena, err := engine.LoadElimination(tournamentID, tournament.Format.IsDoubleElimination(), matches)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return bracketViews(arena), nil
}

func (s *bracketService) GetStandings(ctx context.Context, tournamentID int) ([]models.StandingEntry, error) {
	tournament, err := s.loadTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	// Таблица считается по истории одной фазы: результаты сетки не
	// подмешиваются в швейцарскую таблицу.
	var matches []*models.Match
	if tournament.Format.UsesSwiss() {
		matches, err = s.swissMatches(ctx, tournamentID)
	} else {
		matches, err = s.eliminationMatches(ctx, tournamentID)
	}
	if err != nil {
		return nil, err
	}
	return engine.ComputeStandings(teams, matches, engine.StandingsOptions{Scoring: engine.DefaultScoring()}), nil
}

func (s *bracketService) ListRounds(ctx context.Context, tournamentID int) ([]*models.SwissRound, error) {
	rounds, err := s.roundRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	matches, err := s.swissMatches(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	byNumber := make(map[int]*models.SwissRound, len(rounds))
	for _, r := range rounds {
		byNumber[r.Number] = r
	}
	for _, m := range matches {
		if r, ok := byNumber[m.Round]; ok {
			r.Matches = append(r.Matches, m)
		}
	}
	return rounds, nil
}

// persistRound сохраняет тур и его матчи одной транзакцией.
func (s *bracketService) persistRound(ctx context.Context, round *models.SwissRound) (*models.SwissRound, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.roundRepo.Create(ctx, tx, round); err != nil {
		if errors.Is(err, repositories.ErrRoundNumberConflict) {
			return nil, ErrPhaseConflict
		}
		return nil, err
	}
	if err := s.matchRepo.CreateBatch(ctx, tx, round.Matches); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit round: %w", err)
	}
	return round, nil
}

func (s *bracketService) loadTournament(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *bracketService) swissMatches(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	kind := models.MatchKindSwiss
	return s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Kind: &kind})
}

func (s *bracketService) eliminationMatches(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	kind := models.MatchKindElimination
	return s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Kind: &kind})
}

func (s *bracketService) broadcast(tournamentID int, eventType live.EventType, payload interface{}) {
	if s.hub == nil {
		return
	}
	event := live.NewEvent(eventType, tournamentID, payload)
	s.hub.BroadcastToRoom(live.RoomForTournament(tournamentID), event)
}

// bracketViews разворачивает арену в сетки для отдачи клиенту.
func bracketViews(arena *engine.Elimination) []*models.Bracket {
	status := models.BracketActive
	if arena.Champion() != nil {
		status = models.BracketFinished
	}

	views := []*models.Bracket{{
		TournamentID: arena.TournamentID,
		Kind:         models.BracketWinners,
		Status:       status,
		Rounds:       arena.Winners,
	}}
	if arena.Double {
		views = append(views, &models.Bracket{
			TournamentID: arena.TournamentID,
			Kind:         models.BracketLosers,
			Status:       status,
			Rounds:       arena.Losers,
		})
		gfRounds := make([][]*models.Match, 0, len(arena.GrandFinal))
		for _, gf := range arena.GrandFinal {
			if gf != nil {
				gfRounds = append(gfRounds, []*models.Match{gf})
			}
		}
		views = append(views, &models.Bracket{
			TournamentID: arena.TournamentID,
			Kind:         models.BracketGrandFinal,
			Status:       status,
			Rounds:       gfRounds,
		})
	}
	return views
}

// mapEngineError переводит ошибки движка в сервисную номенклатуру.
func mapEngineError(err error) error {
	switch {
	case errors.Is(err, engine.ErrInsufficientTeams):
		return ErrNotEnoughTeams
	case errors.Is(err, engine.ErrRoundAlreadyGenerated):
		return fmt.Errorf("%w: %v", ErrPhaseConflict, err)
	case errors.Is(err, engine.ErrBracketAlreadyExists):
		return ErrBracketAlreadyBuilt
	case errors.Is(err, engine.ErrDuplicateBracketType):
		return fmt.Errorf("%w: %v", ErrPhaseConflict, err)
	case errors.Is(err, engine.ErrAlreadyCompleted):
		return ErrMatchAlreadyReported
	case errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrWinnerNotParticipant),
		errors.Is(err, engine.ErrNegativeScore):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	default:
		return err
	}
}
