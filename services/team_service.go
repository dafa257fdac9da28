package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nrc-robotics/tournament-system/models"
	"github.com/nrc-robotics/tournament-system/repositories"
	"github.com/nrc-robotics/tournament-system/storage"
)

type CreateTeamInput struct {
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
}

type AddRobotInput struct {
	RobotClassID int     `json:"robot_class_id"`
	Name         string  `json:"name"`
	Waitlist     bool    `json:"waitlist"`
	FeePaid      bool    `json:"fee_paid"`
	Comments     *string `json:"comments,omitempty"`
}

type AddPlayerInput struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     *string `json:"email,omitempty"`
}

type TeamService interface {
	Create(ctx context.Context, tournamentID int, input CreateTeamInput) (*models.Team, error)
	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Team, error)
	Update(ctx context.Context, id int, input CreateTeamInput) (*models.Team, error)
	SetSeed(ctx context.Context, id int, seed *int) error
	Delete(ctx context.Context, id int) error

	AddRobot(ctx context.Context, teamID int, input AddRobotInput) (*models.Robot, error)
	RemoveRobot(ctx context.Context, robotID int) error
	AddPlayer(ctx context.Context, teamID int, input AddPlayerInput) (*models.Player, error)
	RemovePlayer(ctx context.Context, playerID int) error

	UploadLogo(ctx context.Context, teamID int, contentType string, file io.Reader) (*models.Team, error)
}

type teamService struct {
	teamRepo       repositories.TeamRepository
	rosterRepo     repositories.RosterRepository
	tournamentRepo repositories.TournamentRepository
	uploader       storage.FileUploader
}

func NewTeamService(
	teamRepo repositories.TeamRepository,
	rosterRepo repositories.RosterRepository,
	tournamentRepo repositories.TournamentRepository,
	uploader storage.FileUploader,
) TeamService {
	return &teamService{
		teamRepo:       teamRepo,
		rosterRepo:     rosterRepo,
		tournamentRepo: tournamentRepo,
		uploader:       uploader,
	}
}

func (s *teamService) Create(ctx context.Context, tournamentID int, input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	// Состав принимается только до начала боёв.
	if tournament.Status != models.StatusSetup && tournament.Status != models.StatusRegistration {
		return nil, ErrRegistrationClosed
	}

	team := &models.Team{
		TournamentID: tournamentID,
		Name:         name,
		Address:      input.Address,
		Phone:        input.Phone,
		Email:        input.Email,
	}
	if err := s.teamRepo.Create(ctx, nil, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, err
	}
	return team, nil
}

// GetByID возвращает команду вместе с составом: роботы и пилоты
// подгружаются параллельно.
func (s *teamService) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		robots, err := s.rosterRepo.ListRobotsByTeam(gctx, id)
		if err != nil {
			return err
		}
		team.Robots = robots
		return nil
	})
	g.Go(func() error {
		players, err := s.rosterRepo.ListPlayersByTeam(gctx, id)
		if err != nil {
			return err
		}
		team.Players = players
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load roster for team %d: %w", id, err)
	}

	s.populateLogoURL(team)
	return team, nil
}

func (s *teamService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Team, error) {
	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, team := range teams {
		s.populateLogoURL(team)
	}
	return teams, nil
}

func (s *teamService) Update(ctx context.Context, id int, input CreateTeamInput) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		team.Name = name
	}
	if input.Address != nil {
		team.Address = input.Address
	}
	if input.Phone != nil {
		team.Phone = input.Phone
	}
	if input.Email != nil {
		team.Email = input.Email
	}

	if err := s.teamRepo.Update(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, err
	}
	return team, nil
}

func (s *teamService) SetSeed(ctx context.Context, id int, seed *int) error {
	if seed != nil && *seed < 1 {
		return fmt.Errorf("%w: seed must be positive", ErrValidationFailed)
	}
	if err := s.teamRepo.UpdateSeed(ctx, id, seed); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return err
	}
	return nil
}

func (s *teamService) Delete(ctx context.Context, id int) error {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return err
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, team.TournamentID)
	if err == nil && tournament.Status != models.StatusSetup && tournament.Status != models.StatusRegistration {
		// После старта боёв команда остаётся в истории матчей.
		return ErrRosterLocked
	}

	if err := s.teamRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return err
	}
	if team.LogoKey != nil {
		_ = s.uploader.Delete(ctx, *team.LogoKey)
	}
	return nil
}

func (s *teamService) AddRobot(ctx context.Context, teamID int, input AddRobotInput) (*models.Robot, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: robot name is required", ErrValidationFailed)
	}
	if _, err := s.rosterRepo.GetRobotClassByID(ctx, input.RobotClassID); err != nil {
		if errors.Is(err, repositories.ErrRobotClassNotFound) {
			return nil, ErrRobotClassNotFound
		}
		return nil, err
	}

	robot := &models.Robot{
		TeamID:       teamID,
		RobotClassID: input.RobotClassID,
		Name:         strings.TrimSpace(input.Name),
		Waitlist:     input.Waitlist,
		FeePaid:      input.FeePaid,
		Comments:     input.Comments,
	}
	if err := s.rosterRepo.CreateRobot(ctx, nil, robot); err != nil {
		if errors.Is(err, repositories.ErrRobotTeamInvalid) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return robot, nil
}

func (s *teamService) RemoveRobot(ctx context.Context, robotID int) error {
	if err := s.rosterRepo.DeleteRobot(ctx, robotID); err != nil {
		if errors.Is(err, repositories.ErrRobotNotFound) {
			return ErrRobotNotFound
		}
		return err
	}
	return nil
}

func (s *teamService) AddPlayer(ctx context.Context, teamID int, input AddPlayerInput) (*models.Player, error) {
	if strings.TrimSpace(input.FirstName) == "" {
		return nil, fmt.Errorf("%w: player first name is required", ErrValidationFailed)
	}

	player := &models.Player{
		TeamID:    teamID,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     input.Email,
	}
	if err := s.rosterRepo.CreatePlayer(ctx, nil, player); err != nil {
		return nil, err
	}
	return player, nil
}

func (s *teamService) RemovePlayer(ctx context.Context, playerID int) error {
	if err := s.rosterRepo.DeletePlayer(ctx, playerID); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *teamService) UploadLogo(ctx context.Context, teamID int, contentType string, file io.Reader) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	key := fmt.Sprintf("teams/%d/logo", teamID)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}

	if err := s.teamRepo.UpdateLogoKey(ctx, teamID, &result.Key); err != nil {
		return nil, err
	}
	team.LogoKey = &result.Key
	s.populateLogoURL(team)
	return team, nil
}

func (s *teamService) populateLogoURL(team *models.Team) {
	if team.LogoKey != nil {
		url := s.uploader.GetPublicURL(*team.LogoKey)
		if url != "" {
			team.LogoURL = &url
		}
	}
}
