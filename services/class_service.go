package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nrc-robotics/tournament-system/models"
	"github.com/nrc-robotics/tournament-system/repositories"
)

type CreateRobotClassInput struct {
	Name              string  `json:"name"`
	WeightLimitGrams  int     `json:"weight_limit_grams"`
	MatchDurationSec  int     `json:"match_duration_sec"`
	PitActivationSec  int     `json:"pit_activation_sec"`
	ButtonDelaySec    *int    `json:"button_delay_sec,omitempty"`
	ButtonDurationSec *int    `json:"button_duration_sec,omitempty"`
	Description       *string `json:"description,omitempty"`
}

// RobotClassService управляет весовыми категориями. Категории общие
// для всех турниров, поэтому сервис без привязки к турниру.
type RobotClassService interface {
	Create(ctx context.Context, input CreateRobotClassInput) (*models.RobotClass, error)
	GetByID(ctx context.Context, id int) (*models.RobotClass, error)
	List(ctx context.Context) ([]*models.RobotClass, error)
}

type robotClassService struct {
	rosterRepo repositories.RosterRepository
}

func NewRobotClassService(rosterRepo repositories.RosterRepository) RobotClassService {
	return &robotClassService{rosterRepo: rosterRepo}
}

func (s *robotClassService) Create(ctx context.Context, input CreateRobotClassInput) (*models.RobotClass, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: robot class name is required", ErrValidationFailed)
	}
	if input.WeightLimitGrams <= 0 {
		return nil, fmt.Errorf("%w: weight limit must be positive", ErrValidationFailed)
	}
	if input.MatchDurationSec <= 0 {
		return nil, fmt.Errorf("%w: match duration must be positive", ErrValidationFailed)
	}

	class := &models.RobotClass{
		Name:              name,
		WeightLimitGrams:  input.WeightLimitGrams,
		MatchDurationSec:  input.MatchDurationSec,
		PitActivationSec:  input.PitActivationSec,
		ButtonDelaySec:    input.ButtonDelaySec,
		ButtonDurationSec: input.ButtonDurationSec,
		Description:       input.Description,
	}
	if err := s.rosterRepo.CreateRobotClass(ctx, class); err != nil {
		if errors.Is(err, repositories.ErrRobotClassNameConflict) {
			return nil, ErrRobotClassConflict
		}
		return nil, err
	}
	return class, nil
}

func (s *robotClassService) GetByID(ctx context.Context, id int) (*models.RobotClass, error) {
	class, err := s.rosterRepo.GetRobotClassByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRobotClassNotFound) {
			return nil, ErrRobotClassNotFound
		}
		return nil, err
	}
	return class, nil
}

func (s *robotClassService) List(ctx context.Context) ([]*models.RobotClass, error) {
	return s.rosterRepo.ListRobotClasses(ctx)
}
