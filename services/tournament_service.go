package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nrc-robotics/tournament-system/engine"
	"github.com/nrc-robotics/tournament-system/live"
	"github.com/nrc-robotics/tournament-system/models"
	"github.com/nrc-robotics/tournament-system/repositories"
	"github.com/nrc-robotics/tournament-system/storage"
)

const defaultSwissRounds = 3

type CreateTournamentInput struct {
	Name        string                  `json:"name"`
	Format      models.TournamentFormat `json:"format"`
	SwissRounds int                     `json:"swiss_rounds"`
	Location    *string                 `json:"location,omitempty"`
	Description *string                 `json:"description,omitempty"`
	StartDate   *time.Time              `json:"start_date,omitempty"`
	EndDate     *time.Time              `json:"end_date,omitempty"`
}

type UpdateTournamentInput struct {
	Name        *string    `json:"name,omitempty"`
	SwissRounds *int       `json:"swiss_rounds,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

type TournamentService interface {
	Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error)
	Update(ctx context.Context, id int, input UpdateTournamentInput) (*models.Tournament, error)
	Delete(ctx context.Context, id int) error

	// AdvancePhase переводит турнир в следующую фазу его формата.
	// Переход валидируется (минимум команд, завершённость текущей фазы)
	// и фиксируется через CAS: проигравший гонку получает ErrPhaseConflict.
	AdvancePhase(ctx context.Context, id int) (*models.Tournament, error)
	Cancel(ctx context.Context, id int) (*models.Tournament, error)

	// AutoAdvanceDue открывает бои в турнирах, у которых наступила
	// дата старта, а регистрация ещё открыта. Вызывается планировщиком.
	AutoAdvanceDue(ctx context.Context) int

	UploadLogo(ctx context.Context, id int, contentType string, file io.Reader) (*models.Tournament, error)
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	roundRepo      repositories.RoundRepository
	uploader       storage.FileUploader
	hub            *live.Hub
	locks          *TournamentLocks
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	roundRepo repositories.RoundRepository,
	uploader storage.FileUploader,
	hub *live.Hub,
	locks *TournamentLocks,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		roundRepo:      roundRepo,
		uploader:       uploader,
		hub:            hub,
		locks:          locks,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if err := validateFormat(input.Format); err != nil {
		return nil, err
	}
	if err := validateTournamentDates(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	swissRounds := 0
	if input.Format.UsesSwiss() {
		swissRounds = input.SwissRounds
		if swissRounds <= 0 {
			swissRounds = defaultSwissRounds
		}
	}

	tournament := &models.Tournament{
		Name:        name,
		Format:      input.Format,
		Status:      models.StatusSetup,
		SwissRounds: swissRounds,
		OrganizerID: organizerID,
		Location:    input.Location,
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, err
	}
	return tournament, nil
}

// GetByID возвращает турнир вместе с составом и всеми матчами.
func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		teams, err := s.teamRepo.ListByTournament(gctx, id)
		if err != nil {
			return err
		}
		tournament.Teams = make([]models.Team, len(teams))
		for i, t := range teams {
			tournament.Teams[i] = *t
		}
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gctx, id, repositories.MatchFilter{})
		if err != nil {
			return err
		}
		tournament.Matches = make([]models.Match, len(matches))
		for i, m := range matches {
			tournament.Matches[i] = *m
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load details for tournament %d: %w", id, err)
	}

	s.populateLogoURL(tournament)
	return tournament, nil
}

func (s *tournamentService) List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	for _, t := range tournaments {
		s.populateLogoURL(t)
	}
	return tournaments, nil
}

func (s *tournamentService) Update(ctx context.Context, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrTournamentNameRequired
		}
		tournament.Name = name
	}
	if input.SwissRounds != nil {
		// Число туров фиксируется с началом швейцарской фазы.
		if tournament.Status == models.StatusSwissRounds || tournament.Status == models.StatusElimination {
			return nil, fmt.Errorf("%w: swiss rounds are locked after the phase starts", ErrValidationFailed)
		}
		if *input.SwissRounds < 1 {
			return nil, fmt.Errorf("%w: swiss rounds must be positive", ErrValidationFailed)
		}
		tournament.SwissRounds = *input.SwissRounds
	}
	if input.Location != nil {
		tournament.Location = input.Location
	}
	if input.Description != nil {
		tournament.Description = input.Description
	}
	if input.StartDate != nil {
		tournament.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		tournament.EndDate = input.EndDate
	}
	if err := validateTournamentDates(tournament.StartDate, tournament.EndDate); err != nil {
		return nil, err
	}

	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, err
	}

	s.broadcast(tournament)
	return tournament, nil
}

func (s *tournamentService) Delete(ctx context.Context, id int) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	// Турнир с сыгранными боями не удаляется, только отменяется.
	if tournament.Status == models.StatusSwissRounds || tournament.Status == models.StatusElimination {
		return fmt.Errorf("%w: cancel the tournament instead of deleting it", ErrValidationFailed)
	}

	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	if tournament.LogoKey != nil {
		_ = s.uploader.Delete(ctx, *tournament.LogoKey)
	}
	return nil
}

func (s *tournamentService) AdvancePhase(ctx context.Context, id int) (*models.Tournament, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	next, err := engine.NextPhase(tournament)
	if err != nil {
		if errors.Is(err, engine.ErrPhaseAlreadyAdvanced) {
			return nil, fmt.Errorf("%w: %v", ErrPhaseConflict, err)
		}
		return nil, err
	}

	if err := s.guardPhaseEntry(ctx, tournament, next); err != nil {
		return nil, err
	}

	expected := tournament.Status
	if err := engine.AdvancePhase(tournament, next); err != nil {
		return nil, err
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, expected, next); err != nil {
		if errors.Is(err, repositories.ErrTournamentStatusChanged) {
			return nil, ErrPhaseConflict
		}
		return nil, err
	}

	s.logger.Info("tournament phase advanced",
		slog.Int("tournament_id", id),
		slog.String("from", string(expected)),
		slog.String("to", string(next)),
	)
	s.broadcast(tournament)
	return tournament, nil
}

func (s *tournamentService) Cancel(ctx context.Context, id int) (*models.Tournament, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	expected := tournament.Status
	if err := engine.AdvancePhase(tournament, models.StatusCancelled); err != nil {
		if errors.Is(err, engine.ErrPhaseAlreadyAdvanced) {
			return nil, fmt.Errorf("%w: %v", ErrPhaseConflict, err)
		}
		return nil, err
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, expected, models.StatusCancelled); err != nil {
		if errors.Is(err, repositories.ErrTournamentStatusChanged) {
			return nil, ErrPhaseConflict
		}
		return nil, err
	}

	s.logger.Info("tournament cancelled", slog.Int("tournament_id", id))
	s.broadcast(tournament)
	return tournament, nil
}

func (s *tournamentService) AutoAdvanceDue(ctx context.Context) int {
	due, err := s.tournamentRepo.ListDueForStart(ctx)
	if err != nil {
		s.logger.Error("failed to list tournaments due for start", slog.Any("error", err))
		return 0
	}

	advanced := 0
	for _, t := range due {
		if _, err := s.AdvancePhase(ctx, t.ID); err != nil {
			// Нехватка команд не ошибка планировщика, турнир просто ждёт.
			s.logger.Warn("tournament not auto-advanced",
				slog.Int("tournament_id", t.ID),
				slog.Any("reason", err),
			)
			continue
		}
		advanced++
	}
	return advanced
}

func (s *tournamentService) UploadLogo(ctx context.Context, id int, contentType string, file io.Reader) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	key := fmt.Sprintf("tournaments/%d/logo", id)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}

	if err := s.tournamentRepo.UpdateLogoKey(ctx, id, &result.Key); err != nil {
		return nil, err
	}
	tournament.LogoKey = &result.Key
	s.populateLogoURL(tournament)
	return tournament, nil
}

// guardPhaseEntry проверяет, что турнир готов к входу в фазу next.
func (s *tournamentService) guardPhaseEntry(ctx context.Context, t *models.Tournament, next models.TournamentStatus) error {
	switch next {
	case models.StatusSwissRounds, models.StatusElimination:
		if t.Status == models.StatusRegistration {
			teams, err := s.teamRepo.ListByTournament(ctx, t.ID)
			if err != nil {
				return err
			}
			if len(teams) < 2 {
				return ErrNotEnoughTeams
			}
		}
		if next == models.StatusElimination && t.Status == models.StatusSwissRounds {
			return s.guardSwissComplete(ctx, t)
		}
	case models.StatusCompleted:
		switch t.Status {
		case models.StatusSwissRounds:
			return s.guardSwissComplete(ctx, t)
		case models.StatusElimination:
			return s.guardChampionDecided(ctx, t)
		}
	}
	return nil
}

func (s *tournamentService) guardSwissComplete(ctx context.Context, t *models.Tournament) error {
	rounds, err := s.roundRepo.ListByTournament(ctx, t.ID)
	if err != nil {
		return err
	}
	if len(rounds) < t.SwissRounds {
		return fmt.Errorf("%w: %d of %d rounds generated", ErrSwissRoundsIncomplete, len(rounds), t.SwissRounds)
	}

	kind := models.MatchKindSwiss
	matches, err := s.matchRepo.ListByTournament(ctx, t.ID, repositories.MatchFilter{Kind: &kind})
	if err != nil {
		return err
	}
	for _, m := range matches {
		if !m.Status.Terminal() {
			return ErrSwissRoundsIncomplete
		}
	}
	return nil
}

func (s *tournamentService) guardChampionDecided(ctx context.Context, t *models.Tournament) error {
	kind := models.MatchKindElimination
	matches, err := s.matchRepo.ListByTournament(ctx, t.ID, repositories.MatchFilter{Kind: &kind})
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return ErrBracketIncomplete
	}
	arena, err := engine.LoadElimination(t.ID, t.Format.IsDoubleElimination(), matches)
	if err != nil {
		return err
	}
	if arena.Champion() == nil {
		return ErrBracketIncomplete
	}
	return nil
}

func (s *tournamentService) populateLogoURL(t *models.Tournament) {
	if t.LogoKey != nil {
		url := s.uploader.GetPublicURL(*t.LogoKey)
		if url != "" {
			t.LogoURL = &url
		}
	}
}

func (s *tournamentService) broadcast(t *models.Tournament) {
	if s.hub == nil {
		return
	}
	event := live.NewEvent(live.EventTournamentUpdated, t.ID, t)
	s.hub.BroadcastToRoom(live.RoomForTournament(t.ID), event)
}
